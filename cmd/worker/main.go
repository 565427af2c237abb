package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"brokerage_backoffice/internal/assignment"
	"brokerage_backoffice/internal/email"
	"brokerage_backoffice/internal/employees"
	"brokerage_backoffice/internal/followups"
	"brokerage_backoffice/internal/followups/reminders"
	leadrepo "brokerage_backoffice/internal/leads/repository"
	"brokerage_backoffice/internal/notification"
	"brokerage_backoffice/internal/queue"
	"brokerage_backoffice/platform/config"
	"brokerage_backoffice/platform/db"
	"brokerage_backoffice/platform/logger"
	platformmongo "brokerage_backoffice/platform/mongo"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName(), "concurrency", cfg.GetAsynqConcurrency())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	var (
		mongoClient *mongo.Client
		mongoDB     *mongo.Database
	)
	if err := withRetry(ctx, log, "mongo connection", 5, 2*time.Second, func() error {
		c, d, err := platformmongo.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		mongoClient, mongoDB = c, d
		return nil
	}); err != nil {
		log.Error("failed to connect to mongo", "error", err)
		panic("failed to connect to mongo: " + err.Error())
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	table, err := reminders.LoadTable(cfg.GetReminderTiersFile())
	if err != nil {
		log.Error("failed to load reminder tiers", "error", err, "file", cfg.GetReminderTiersFile())
		panic("failed to load reminder tiers: " + err.Error())
	}

	leads := leadrepo.New(mongoDB)
	ledger := assignment.NewMongoLedger(mongoDB)
	directory := employees.NewService(employees.NewRepository(pool), log.WithComponent("employees"))
	notificationModule := notification.New(mongoDB, email.NewSender(cfg), cfg, log)

	followUps := followups.NewRepository(mongoDB)

	// Retried jobs rely on the unique ledger and notification indexes.
	if err := ensureIndexes(ctx, map[string]func(context.Context) error{
		"leads":         leads.EnsureIndexes,
		"assignment":    ledger.EnsureIndexes,
		"followups":     followUps.EnsureIndexes,
		"notifications": notificationModule.EnsureIndexes,
	}); err != nil {
		log.Error("failed to ensure indexes", "error", err)
		panic("failed to ensure indexes: " + err.Error())
	}

	processor := assignment.NewProcessor(leads, ledger, log.WithComponent("assignment"))
	delivery := notificationModule.ReminderDelivery(followUps, leads, directory, table)

	worker, err := queue.NewWorker(cfg, table.RetryDelay, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}
	worker.Handle(queue.TaskBulkAssignLeads, processor.HandleBulkAssign)
	worker.Handle(queue.TaskRevertBulkAssign, processor.HandleRevert)
	worker.Handle(queue.TaskSendLeadFollowUpNotification, delivery.Handle)

	if err := worker.Run(ctx); err != nil {
		log.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

func ensureIndexes(ctx context.Context, ensurers map[string]func(context.Context) error) error {
	names := make([]string, 0, len(ensurers))
	for name := range ensurers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ensurers[name](ctx); err != nil {
			return fmt.Errorf("%s indexes: %w", name, err)
		}
	}
	return nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

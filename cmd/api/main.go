package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brokerage_backoffice/internal/assignment"
	"brokerage_backoffice/internal/email"
	"brokerage_backoffice/internal/employees"
	"brokerage_backoffice/internal/followups"
	"brokerage_backoffice/internal/followups/reminders"
	apphttp "brokerage_backoffice/internal/http"
	"brokerage_backoffice/internal/http/router"
	"brokerage_backoffice/internal/leads"
	"brokerage_backoffice/internal/notification"
	"brokerage_backoffice/internal/queue"
	"brokerage_backoffice/platform/config"
	"brokerage_backoffice/platform/db"
	"brokerage_backoffice/platform/logger"
	platformmongo "brokerage_backoffice/platform/mongo"
	"brokerage_backoffice/platform/storage"
	"brokerage_backoffice/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

// indexer is implemented by modules that own Mongo collections.
type indexer interface {
	Name() string
	EnsureIndexes(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	log.Info("database connection established")

	if err := db.RunMigrations(ctx, pool); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("mongo connection established", "database", cfg.GetMongoDatabase())

	jobs, err := queue.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize job queue client", "error", err)
		panic("failed to initialize job queue client: " + err.Error())
	}
	defer func() { _ = jobs.Close() }()

	probe, err := queue.NewRedisProbe(cfg)
	if err != nil {
		log.Error("failed to initialize redis probe", "error", err)
		panic("failed to initialize redis probe: " + err.Error())
	}
	defer func() { _ = probe.Close() }()

	table, err := reminders.LoadTable(cfg.GetReminderTiersFile())
	if err != nil {
		log.Error("failed to load reminder tiers", "error", err, "file", cfg.GetReminderTiersFile())
		panic("failed to load reminder tiers: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules
	// ========================================================================

	employeesModule := employees.NewModule(pool, val, log)
	directory := employeesModule.Service()

	leadsModule := leads.NewModule(mongoDB, directory, val, log)
	leadRepo := leadsModule.Repository()

	assignmentModule := assignment.NewModule(mongoDB, leadRepo, jobs, directory, val, log)
	if cfg.IsMinIOEnabled() {
		attachReportArchive(ctx, log, cfg, assignmentModule.Service())
	}

	dispatcher := reminders.NewDispatcher(jobs, probe, table, log.WithComponent("reminders"))
	followUpsModule := followups.NewModule(mongoDB, leadRepo, dispatcher, val, log)

	notificationModule := notification.New(mongoDB, email.NewSender(cfg), cfg, log)

	for _, m := range []indexer{leadsModule, assignmentModule, followUpsModule, notificationModule} {
		if err := m.EnsureIndexes(ctx); err != nil {
			log.Error("failed to ensure indexes", "module", m.Name(), "error", err)
			panic("failed to ensure indexes: " + err.Error())
		}
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: map[string]apphttp.HealthChecker{
			"postgres": pool,
			"mongo": apphttp.HealthCheckFunc(func(ctx context.Context) error {
				return platformmongo.Ping(ctx, mongoClient)
			}),
			"redis": probe,
		},
		Modules: []apphttp.Module{
			employeesModule,
			leadsModule,
			assignmentModule,
			followUpsModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func attachReportArchive(ctx context.Context, log *logger.Logger, cfg config.MinIOConfig, svc *assignment.Service) {
	store, err := storage.NewMinIOStore(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		return
	}

	bucket := cfg.GetMinioBucketBatchReports()
	if err := withRetry(ctx, log, "ensure batch report bucket", 3, 2*time.Second, func() error {
		return store.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("batch report archive disabled", "error", err, "bucket", bucket)
		return
	}
	svc.WithArchive(store, bucket)
	log.Info("batch report archive enabled", "bucket", bucket)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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

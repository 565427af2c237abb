package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brokerage_backoffice/platform/config"
	"brokerage_backoffice/platform/logger"

	"github.com/hibiken/asynq"
)

// HandlerFunc processes one task. Returning an error wrapping asynq.SkipRetry
// archives the task immediately.
type HandlerFunc func(ctx context.Context, task *asynq.Task) error

// RetryDelayFunc picks the wait before retry n of task.
type RetryDelayFunc func(n int, err error, task *asynq.Task) time.Duration

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.QueueConfig, retryDelay RetryDelayFunc, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	if retryDelay == nil {
		retryDelay = asynq.DefaultRetryDelayFunc
	}

	log = log.WithComponent("worker")
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		RetryDelayFunc: asynq.RetryDelayFunc(retryDelay),
		Logger:         asynqLogger{log: log},
		ErrorHandler:   asynq.ErrorHandlerFunc(errorReporter(log)),
	})

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}, nil
}

// Handle registers h for taskType. Each execution gets a task-scoped logger context.
func (w *Worker) Handle(taskType string, h HandlerFunc) {
	w.mux.HandleFunc(taskType, func(ctx context.Context, task *asynq.Task) error {
		if id, ok := asynq.GetTaskID(ctx); ok {
			ctx = context.WithValue(ctx, logger.TaskIDKey, id)
		}
		return h(ctx, task)
	})
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

func errorReporter(log *logger.Logger) func(ctx context.Context, task *asynq.Task, err error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		final := errors.Is(err, asynq.SkipRetry) || retried >= maxRetry

		args := []any{"task", task.Type(), "retried", retried, "maxRetry", maxRetry, "error", err}
		if id, ok := asynq.GetTaskID(ctx); ok {
			args = append(args, "taskId", id)
		}
		if final {
			log.Error("task failed permanently", args...)
			return
		}
		log.Warn("task failed, will retry", args...)
	}
}

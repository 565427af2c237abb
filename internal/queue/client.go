// Package queue is the durable, delay-capable job queue shared by the API and
// the worker, backed by asynq on Redis.
package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brokerage_backoffice/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// JobOptions is the per-enqueue retry policy.
type JobOptions struct {
	// Attempts is the total number of executions, including the first one.
	Attempts int
	// Delay postpones the first execution; zero or negative runs immediately.
	Delay time.Duration
	// Timeout bounds one execution.
	Timeout time.Duration
	// Retention keeps the completed task record around for inspection.
	// Zero deletes it on success.
	Retention time.Duration
	// TaskID, when set, rejects a second enqueue of the same id while the
	// first task is still pending with ErrDuplicate.
	TaskID string
	// Resubmit lets an enqueue with TaskID replace a finished task of the
	// same id. A task that exhausted its retries stays archived under its id;
	// Resubmit deletes that record and enqueues again. Pending, scheduled,
	// retrying and running tasks still yield ErrDuplicate.
	Resubmit bool
}

var (
	// ErrDuplicate is returned when a task with the same TaskID is already queued.
	ErrDuplicate = errors.New("task already queued")
	// ErrUnavailable wraps enqueue failures caused by an unreachable broker.
	ErrUnavailable = errors.New("job queue unavailable")
)

// Enqueuer accepts named jobs with a JSON payload.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any, opts JobOptions) (string, error)
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type taskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
	Close() error
}

type Client struct {
	client    taskEnqueuer
	inspector taskInspector
	queue     string
}

func NewClient(cfg config.QueueConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.inspector != nil {
		_ = c.inspector.Close()
	}
	return c.client.Close()
}

// Enqueue returns the asynq task id.
func (c *Client) Enqueue(ctx context.Context, taskType string, payload any, opts JobOptions) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", taskType, err)
	}

	task := asynq.NewTask(taskType, data)
	info, err := c.client.EnqueueContext(ctx, task, asynqOptions(c.queue, opts)...)
	if isDuplicate(err) && opts.Resubmit && opts.TaskID != "" {
		var cleared bool
		cleared, err = c.clearFinished(opts.TaskID)
		if err != nil {
			return "", fmt.Errorf("enqueue %s: %w", taskType, err)
		}
		if cleared {
			info, err = c.client.EnqueueContext(ctx, task, asynqOptions(c.queue, opts)...)
		} else {
			err = asynq.ErrTaskIDConflict
		}
	}
	if isDuplicate(err) {
		return "", fmt.Errorf("enqueue %s: %w", taskType, ErrDuplicate)
	}
	if IsConnectivityError(err) {
		return "", fmt.Errorf("enqueue %s: %w: %w", taskType, ErrUnavailable, err)
	}
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return info.ID, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask)
}

// clearFinished deletes the task holding id when it is archived or
// completed. It reports whether the id is free again.
func (c *Client) clearFinished(id string) (bool, error) {
	if c.inspector == nil {
		return false, nil
	}

	info, err := c.inspector.GetTaskInfo(c.queue, id)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect task %s: %w", id, err)
	}

	switch info.State {
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
	default:
		return false, nil
	}

	if err := c.inspector.DeleteTask(c.queue, id); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, fmt.Errorf("delete finished task %s: %w", id, err)
	}
	return true, nil
}

func asynqOptions(queue string, opts JobOptions) []asynq.Option {
	retries := opts.Attempts - 1
	if retries < 0 {
		retries = 0
	}

	out := []asynq.Option{asynq.Queue(queue), asynq.MaxRetry(retries)}
	if opts.Delay > 0 {
		out = append(out, asynq.ProcessIn(opts.Delay))
	}
	if opts.Timeout > 0 {
		out = append(out, asynq.Timeout(opts.Timeout))
	}
	if opts.Retention > 0 {
		out = append(out, asynq.Retention(opts.Retention))
	}
	if opts.TaskID != "" {
		out = append(out, asynq.TaskID(opts.TaskID))
	}
	return out
}

func queueName(cfg config.QueueConfig) string {
	if q := cfg.GetAsynqQueueName(); q != "" {
		return q
	}
	return "default"
}

func parseRedisURL(redisURL string, tlsInsecure bool) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		opt.TLSConfig = clone
	} else if tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return opt, nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := parseRedisURL(redisURL, tlsInsecure)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

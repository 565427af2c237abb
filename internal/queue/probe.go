package queue

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"brokerage_backoffice/platform/config"

	"github.com/redis/go-redis/v9"
)

const defaultProbeTimeout = 2 * time.Second

// Prober reports whether the broker can currently accept jobs.
type Prober interface {
	Available(ctx context.Context) bool
}

// RedisProbe answers Available with a bounded PING against the broker.
type RedisProbe struct {
	rdb     redis.UniversalClient
	timeout time.Duration
}

func NewRedisProbe(cfg config.QueueConfig) (*RedisProbe, error) {
	opt, err := parseRedisURL(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	opt.MaxRetries = 0
	opt.DialTimeout = defaultProbeTimeout
	return NewRedisProbeFromClient(redis.NewClient(opt)), nil
}

func NewRedisProbeFromClient(rdb redis.UniversalClient) *RedisProbe {
	return &RedisProbe{rdb: rdb, timeout: defaultProbeTimeout}
}

func (p *RedisProbe) Available(ctx context.Context) bool {
	if p == nil || p.rdb == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.rdb.Ping(ctx).Err() == nil
}

// Ping is the health-check form of Available.
func (p *RedisProbe) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *RedisProbe) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}

var connectivityMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"redis: client is closed",
	"redis: connection pool timeout",
}

// IsConnectivityError reports whether err means the broker could not be
// reached, as opposed to the broker rejecting the job.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrUnavailable) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range connectivityMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Package metrics holds the process-wide prometheus collectors and the gin
// middleware recording HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backoffice"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	bulkAssignBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_assign_batches_total",
			Help:      "Bulk assignment batches accepted for processing",
		},
	)

	leadClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_claims_total",
			Help:      "Per-lead claim attempts made by bulk assignment jobs",
		},
		[]string{"result"},
	)

	leadReverts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_reverts_total",
			Help:      "Per-lead restore attempts made by revert jobs",
		},
		[]string{"result"},
	)

	reminderEnqueue = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_enqueue_total",
			Help:      "Reminder tier scheduling outcomes",
		},
		[]string{"tier", "outcome"},
	)

	remindersDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_delivered_total",
			Help:      "Reminder jobs executed by the worker",
		},
		[]string{"tier", "result"},
	)
)

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordBulkAssignBatch() {
	bulkAssignBatches.Inc()
}

// RecordLeadClaim takes one of "claimed", "lost_race", "failed".
func RecordLeadClaim(result string) {
	leadClaims.WithLabelValues(result).Inc()
}

// RecordLeadRevert takes one of "restored", "skipped", "failed".
func RecordLeadRevert(result string) {
	leadReverts.WithLabelValues(result).Inc()
}

func RecordReminderEnqueue(tier, outcome string) {
	reminderEnqueue.WithLabelValues(tier, outcome).Inc()
}

func RecordReminderDelivery(tier, result string) {
	remindersDelivered.WithLabelValues(tier, result).Inc()
}

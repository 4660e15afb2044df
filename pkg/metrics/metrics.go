package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConfirmationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmation_count",
			Help: "Total number of confirmation attempts",
		},
		[]string{"outcome"}, // outcome: confirmed, already_confirmed, unknown_token, error
	)

	SubscriptionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_count",
			Help: "Total number of subscription intake requests",
		},
		[]string{"status"}, // status: created, throttled, failed
	)

	EmailSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "email_send_duration_seconds",
			Help:    "Outbound email delivery latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
		[]string{"status"}, // status: sent, rejected, timeout, transport_error
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func RecordConfirmation(outcome string) {
	ConfirmationCount.WithLabelValues(outcome).Inc()
}

func RecordSubscription(status string) {
	SubscriptionCount.WithLabelValues(status).Inc()
}

func RecordEmailSend(status string, duration time.Duration) {
	EmailSendDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "giftpool_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route", "status"},
	)

	RetryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftpool_retry_total",
			Help: "Retried data-access attempts",
		},
		[]string{"operation"},
	)

	NotificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftpool_notifications_total",
			Help: "Notifications sent, by type and outcome",
		},
		[]string{"type", "status"}, // status: created, failed
	)

	PushDeliveryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftpool_push_deliveries_total",
			Help: "Web push deliveries, by outcome",
		},
		[]string{"status"}, // status: sent, expired, failed
	)

	InvitationEmailCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftpool_invitation_emails_total",
			Help: "Invitation emails sent to people without an account",
		},
		[]string{"status"},
	)
)

func RecordHTTPRequestDuration(method, route, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func IncrementRetry(operation string) {
	RetryCount.WithLabelValues(operation).Inc()
}

func IncrementNotification(notifType, status string) {
	NotificationCount.WithLabelValues(notifType, status).Inc()
}

func IncrementPushDelivery(status string) {
	PushDeliveryCount.WithLabelValues(status).Inc()
}

func IncrementInvitationEmail(status string) {
	InvitationEmailCount.WithLabelValues(status).Inc()
}

// Package metrics holds the indexer's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes
const (
	OutcomeCommitted = "committed"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

var (
	webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "indexer_webhook_deliveries_total", Help: "Webhook deliveries by event type and outcome"},
		[]string{"type", "outcome"},
	)
	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "indexer_webhook_duration_seconds", Help: "Webhook handling latency", Buckets: prometheus.DefBuckets},
		[]string{"type"},
	)
	retryAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "indexer_retry_attempts_total", Help: "Dispatch retries after a transient failure"},
	)
	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "indexer_rate_limited_total", Help: "Requests rejected by the rate limiter"},
		[]string{"route"},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "indexer_notifications_total", Help: "Outbound notifications by sink and result"},
		[]string{"sink", "result"},
	)
)

func init() {
	prometheus.MustRegister(webhookDeliveries, webhookDuration, retryAttempts, rateLimited, notifications)
}

// ObserveDelivery records one finished webhook delivery.
func ObserveDelivery(eventType, outcome string, elapsed time.Duration) {
	webhookDeliveries.WithLabelValues(eventType, outcome).Inc()
	webhookDuration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func IncRetry() {
	retryAttempts.Inc()
}

func IncRateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}

func IncNotification(sink string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	notifications.WithLabelValues(sink, result).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentLinksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_links_created_total",
			Help: "Payment links created per saga kind",
		},
		[]string{"kind", "status"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook events received per type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	refundsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_issued_total",
			Help: "Refund calls per saga kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	reconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Deferred reconciliation runs per outcome",
		},
		[]string{"outcome"},
	)

	pendingReconciliations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_reconciliations_total",
			Help: "Reconciliation jobs currently scheduled",
		},
	)

	providerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_duration_seconds",
			Help:    "Payment provider API call latency per endpoint",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	notificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications handed to the queue per type and outcome",
		},
		[]string{"type", "outcome"},
	)
)

func TrackPaymentLink(kind, status string) {
	paymentLinksCreated.WithLabelValues(kind, status).Inc()
}

func TrackWebhookEvent(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func TrackRefund(kind, outcome string) {
	refundsIssued.WithLabelValues(kind, outcome).Inc()
}

func TrackReconcileRun(outcome string) {
	reconcileRuns.WithLabelValues(outcome).Inc()
}

func SetPendingReconciliations(n float64) {
	pendingReconciliations.Set(n)
}

func TrackNotification(notificationType, outcome string) {
	notificationsPublished.WithLabelValues(notificationType, outcome).Inc()
}

func ObserveProviderCall(endpoint string, seconds float64) {
	providerCallDuration.WithLabelValues(endpoint).Observe(seconds)
}

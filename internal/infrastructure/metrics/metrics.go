package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric this service exports
const Namespace = "billing"

// Metrics groups the webhook pipeline collectors.
type Metrics struct {
	WebhookOutcomes   *prometheus.CounterVec
	WebhookDuration   *prometheus.HistogramVec
	StaleEvents       *prometheus.CounterVec
	ProviderAttempts  *prometheus.CounterVec
	ProviderFailures  *prometheus.CounterVec
	FailedEventAlerts prometheus.Counter
}

// New registers the collectors on reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		WebhookOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook deliveries by outcome and event type.",
		}, []string{"outcome", "event_type"}),
		WebhookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "webhook",
			Name:      "handler_duration_seconds",
			Help:      "Time spent applying an event's side effects.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"event_type"}),
		StaleEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "webhook",
			Name:      "stale_events_total",
			Help:      "Events acknowledged without effect because newer state was already stored.",
		}, []string{"event_type"}),
		ProviderAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "provider",
			Name:      "attempts_total",
			Help:      "Outbound provider call attempts.",
		}, []string{"op"}),
		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "provider",
			Name:      "failures_total",
			Help:      "Outbound provider calls that failed after retries, by class.",
		}, []string{"op", "class"}),
		FailedEventAlerts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "webhook",
			Name:      "failures_reported_total",
			Help:      "Handler failures written to the failed event table.",
		}),
	}
}

// NewNop returns collectors registered nowhere.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveWebhook records one delivery. eventType may be empty when the
// payload never verified.
func (m *Metrics) ObserveWebhook(outcome, eventType string, took time.Duration) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.WebhookOutcomes.WithLabelValues(outcome, eventType).Inc()
	if took > 0 {
		m.WebhookDuration.WithLabelValues(eventType).Observe(took.Seconds())
	}
}

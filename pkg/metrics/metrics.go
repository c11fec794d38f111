package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records counters for the payment lifecycle.
type PaymentMetrics struct {
	intentsCreated   *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intents_created_total",
		Help: "Payment intent creation attempts by outcome.",
	}, []string{"rail", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook deliveries by rail, event type, and outcome.",
	}, []string{"rail", "event_type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_call_duration_seconds",
		Help:    "Duration of outbound provider calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
	reg.MustRegister(intents, webhooks, duration)
	return &PaymentMetrics{
		intentsCreated:   intents,
		webhookEvents:    webhooks,
		providerDuration: duration,
	}
}

// IncIntentCreated increments the intent counter for the rail/outcome pair.
func (m *PaymentMetrics) IncIntentCreated(rail, outcome string) {
	if m == nil || m.intentsCreated == nil {
		return
	}
	m.intentsCreated.WithLabelValues(normalizeLabel(rail), normalizeLabel(outcome)).Inc()
}

// IncWebhookEvent increments the webhook counter.
func (m *PaymentMetrics) IncWebhookEvent(rail, eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(rail), normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveProviderCall records the duration of an outbound provider call.
func (m *PaymentMetrics) ObserveProviderCall(provider, operation string, duration time.Duration) {
	if m == nil || m.providerDuration == nil {
		return
	}
	m.providerDuration.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

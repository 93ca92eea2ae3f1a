package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks relay progress from the outbox table to Pub/Sub.
type OutboxMetrics struct {
	published    *prometheus.CounterVec
	retried      *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	deferred     prometheus.Counter
	pending      prometheus.Gauge
	latency      prometheus.Histogram
}

// NewOutboxMetrics registers the relay metrics. A nil registerer yields a
// no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_outbox_published_total",
			Help: "Outbox events delivered to Pub/Sub.",
		}, []string{"event_type"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_outbox_retried_total",
			Help: "Publish attempts that failed and will be retried.",
		}, []string{"event_type"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_outbox_dead_lettered_total",
			Help: "Outbox events moved to the DLQ.",
		}, []string{"reason"}),
		deferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_outbox_deferred_total",
			Help: "Events held back because an earlier event of the same aggregate failed.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pos_outbox_pending",
			Help: "Outbox rows not yet published.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_outbox_publish_lag_seconds",
			Help:    "Time between an event being recorded and being published.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(m.published, m.retried, m.deadLettered, m.deferred, m.pending, m.latency)
	return m
}

func (m *OutboxMetrics) IncPublished(eventType string, lag time.Duration) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
	if lag > 0 {
		m.latency.Observe(lag.Seconds())
	}
}

func (m *OutboxMetrics) IncRetried(eventType string) {
	if m == nil || m.retried == nil {
		return
	}
	m.retried.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncDeadLettered(reason string) {
	if m == nil || m.deadLettered == nil {
		return
	}
	m.deadLettered.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *OutboxMetrics) IncDeferred() {
	if m == nil || m.deferred == nil {
		return
	}
	m.deferred.Inc()
}

func (m *OutboxMetrics) SetPending(count int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(count))
}

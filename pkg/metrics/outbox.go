package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks how marketplace events leave the outbox.
type OutboxMetrics struct {
	dispatched *prometheus.CounterVec
	lag        *prometheus.HistogramVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_dispatched_total",
		Help: "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	lag := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_event_lag_seconds",
		Help:    "Time between an outbox row being written and the publisher handling it.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300, 900},
	}, []string{"event_type"})
	reg.MustRegister(dispatched, lag)
	return &OutboxMetrics{dispatched: dispatched, lag: lag}
}

// ObserveDispatch counts one handled row. Lag is only recorded for rows that
// left the outbox for good.
func (o *OutboxMetrics) ObserveDispatch(eventType, outcome string, lag time.Duration) {
	if o == nil || o.dispatched == nil {
		return
	}
	eventType = normalizeLabel(eventType)
	o.dispatched.WithLabelValues(eventType, normalizeLabel(outcome)).Inc()
	if outcome != "retry" && lag > 0 {
		o.lag.WithLabelValues(eventType).Observe(lag.Seconds())
	}
}

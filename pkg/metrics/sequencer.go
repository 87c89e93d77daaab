package metrics

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var weiPerEther = new(big.Float).SetFloat64(1e18)

// SequencerMetrics records submission throughput, finality outcomes and the
// custody balance of the marketplace contract.
type SequencerMetrics struct {
	submitted  *prometheus.CounterVec
	finalized  *prometheus.CounterVec
	apply      *prometheus.HistogramVec
	queueDepth prometheus.Gauge
	custody    prometheus.Gauge
}

// NewSequencerMetrics registers the sequencer metrics on the provided registerer.
func NewSequencerMetrics(reg prometheus.Registerer) *SequencerMetrics {
	if reg == nil {
		return &SequencerMetrics{}
	}
	submitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_tx_submitted_total",
		Help: "Transactions accepted into the submission queue.",
	}, []string{"method"})
	finalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_tx_finalized_total",
		Help: "Transactions finalized, by outcome and error code.",
	}, []string{"method", "status", "code"})
	apply := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_tx_apply_seconds",
		Help:    "Time spent applying a transaction to the ledger.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_tx_queue_depth",
		Help: "Transactions waiting to be applied.",
	})
	custody := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_custody_balance_ether",
		Help: "Funds held by the contract after the last finalized transaction.",
	})
	reg.MustRegister(submitted, finalized, apply, queueDepth, custody)
	return &SequencerMetrics{
		submitted:  submitted,
		finalized:  finalized,
		apply:      apply,
		queueDepth: queueDepth,
		custody:    custody,
	}
}

func (m *SequencerMetrics) IncSubmitted(method string) {
	if m == nil || m.submitted == nil {
		return
	}
	m.submitted.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncFinalized counts a finalized transaction. code is empty on success.
func (m *SequencerMetrics) IncFinalized(method, status, code string) {
	if m == nil || m.finalized == nil {
		return
	}
	if code == "" {
		code = "none"
	}
	m.finalized.WithLabelValues(normalizeLabel(method), normalizeLabel(status), code).Inc()
}

func (m *SequencerMetrics) ObserveApply(method string, duration time.Duration) {
	if m == nil || m.apply == nil {
		return
	}
	m.apply.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

func (m *SequencerMetrics) SetQueueDepth(depth int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// SetCustodyBalance exports the balance in ether. Precision loss is fine for
// a gauge.
func (m *SequencerMetrics) SetCustodyBalance(wei *big.Int) {
	if m == nil || m.custody == nil || wei == nil {
		return
	}
	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	m.custody.Set(ether)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

package metrics

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronMetrics covers the maintenance worker: per-job outcomes and the last
// custody drift the audit observed.
type CronMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	drift    prometheus.Gauge
}

func NewCronMetrics(reg prometheus.Registerer) *CronMetrics {
	if reg == nil {
		return &CronMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of maintenance jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Maintenance job executions by outcome.",
	}, []string{"job", "outcome"})
	drift := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_custody_drift_wei",
		Help: "Stored contract balance minus the balance replayed from the custody journal.",
	})
	reg.MustRegister(duration, runs, drift)
	return &CronMetrics{duration: duration, runs: runs, drift: drift}
}

func (c *CronMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (c *CronMetrics) IncSuccess(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), "success").Inc()
}

func (c *CronMetrics) IncFailure(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), "failure").Inc()
}

// SetCustodyDrift exports the drift in wei. Anything but zero is an alert.
func (c *CronMetrics) SetCustodyDrift(wei *big.Int) {
	if c == nil || c.drift == nil || wei == nil {
		return
	}
	value, _ := new(big.Float).SetInt(wei).Float64()
	c.drift.Set(value)
}

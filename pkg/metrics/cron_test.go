package metrics

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCronMetricsRecordsOutcomesAndDrift(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronMetrics(reg)

	m.IncSuccess("custody-audit")
	m.IncFailure("custody-audit")
	m.IncFailure("custody-audit")
	m.ObserveDuration("outbox-retention", 20*time.Millisecond)
	m.SetCustodyDrift(big.NewInt(-42))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := counterValue(t, mfs, "cron_job_runs_total", map[string]string{"job": "custody-audit", "outcome": "failure"}); got != 2 {
		t.Fatalf("expected two failures, got %f", got)
	}
	if got := counterValue(t, mfs, "cron_job_runs_total", map[string]string{"job": "custody-audit", "outcome": "success"}); got != 1 {
		t.Fatalf("expected one success, got %f", got)
	}
	if got := findMetric(t, mfs, "marketplace_custody_drift_wei", nil).GetGauge().GetValue(); got != -42 {
		t.Fatalf("expected drift -42, got %f", got)
	}
}

func TestCronMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewCronMetrics(nil)
	m.IncSuccess("x")
	m.IncFailure("x")
	m.ObserveDuration("x", time.Second)
	m.SetCustodyDrift(big.NewInt(1))
}

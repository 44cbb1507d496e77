package instrument

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetricsRecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))

	m.SignalWrite(1, 1)
	m.SignalWrite(1, 2)
	m.ComputedRecomputed(2)
	m.EffectRan(3)
	m.FlushStart(0, 4)
	m.FlushEnd(0, 4, 3*time.Millisecond)
	m.EffectPanicked(3, errors.New("boom"))

	if got := metricCounterValue(t, m.signalWrites); got != 2 {
		t.Errorf("signal_writes_total=%v, want 2", got)
	}
	if got := metricCounterValue(t, m.recomputes); got != 1 {
		t.Errorf("computed_recomputes_total=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.effectRuns); got != 1 {
		t.Errorf("effect_runs_total=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.flushWaves); got != 1 {
		t.Errorf("flush_waves_total=%v, want 1", got)
	}
	if got := metricGaugeValue(t, m.queuedEffects); got != 4 {
		t.Errorf("queued_effects=%v, want 4", got)
	}
	if got := metricHistogramCount(t, m.flushDuration); got != 1 {
		t.Errorf("flush_duration_seconds count=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.effectPanics); got != 1 {
		t.Errorf("effect_panics_total=%v, want 1", got)
	}
}

func TestMetricsRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(WithRegistry(reg), WithNamespace("reg"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected collectors registered on the provided registry")
	}
}

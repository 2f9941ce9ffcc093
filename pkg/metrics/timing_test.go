package metrics

import (
	"testing"
	"time"
)

func TestTimingMetricRecord(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("test")
	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)

	s := m.Stats()
	if s.Count != 2 {
		t.Errorf("expected count 2, got %d", s.Count)
	}
	if s.MinMs != 2 || s.MaxMs != 4 {
		t.Errorf("expected min 2ms / max 4ms, got %v / %v", s.MinMs, s.MaxMs)
	}
	if s.AvgMs != 3 {
		t.Errorf("expected avg 3ms, got %v", s.AvgMs)
	}

	m.Reset()
	if m.Count() != 0 {
		t.Errorf("expected count 0 after reset, got %d", m.Count())
	}
}

func TestDisabledMetricsAreNoOps(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("off")
	Timer(m)()
	m.Record(time.Millisecond)
	c := newCounter("off")
	c.Inc()

	if m.Count() != 0 {
		t.Errorf("expected no timings while disabled, got %d", m.Count())
	}
	if c.Value() != 0 {
		t.Errorf("expected no counts while disabled, got %d", c.Value())
	}
}

func TestResetAllClearsCounters(t *testing.T) {
	SetEnabled(true)
	LoadsTriggered.Inc()
	TreeBuild.Record(time.Microsecond)
	ResetAll()

	if LoadsTriggered.Value() != 0 {
		t.Errorf("expected counter reset, got %d", LoadsTriggered.Value())
	}
	if len(AllTimingStats()) != 0 {
		t.Errorf("expected no timing stats after reset, got %d", len(AllTimingStats()))
	}
	if _, ok := CounterValues()["loads_triggered"]; !ok {
		t.Error("expected loads_triggered in CounterValues")
	}
}

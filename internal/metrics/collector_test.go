package fixmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	fixmetrics "github.com/dantte-lp/gofix/internal/metrics"
	"github.com/dantte-lp/gofix/internal/session"
)

func testID() session.ID {
	return session.ID{BeginString: "FIX.4.4", SenderCompID: "US", TargetCompID: "THEM"}
}

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := fixmetrics.NewCollector(reg)

	if c.LoggedOn == nil {
		t.Error("LoggedOn is nil")
	}
	if c.MessagesSent == nil {
		t.Error("MessagesSent is nil")
	}
	if c.MessagesReceived == nil {
		t.Error("MessagesReceived is nil")
	}
	if c.GapsDetected == nil {
		t.Error("GapsDetected is nil")
	}
	if c.ResendsServiced == nil {
		t.Error("ResendsServiced is nil")
	}

	// Verify all metrics are registered by gathering them.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	// No data yet, so families may be empty -- but registration must not panic.
	_ = families
}

func TestObserveStateChange(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := fixmetrics.NewCollector(reg)
	id := testID()

	c.ObserveStateChange(id, true)
	val := gaugeValue(t, c.LoggedOn, id.BeginString, id.SenderCompID, id.TargetCompID)
	if val != 1 {
		t.Errorf("after ObserveStateChange(true): LoggedOn = %v, want 1", val)
	}

	c.ObserveStateChange(id, false)
	val = gaugeValue(t, c.LoggedOn, id.BeginString, id.SenderCompID, id.TargetCompID)
	if val != 0 {
		t.Errorf("after ObserveStateChange(false): LoggedOn = %v, want 0", val)
	}
}

func TestMessageCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := fixmetrics.NewCollector(reg)
	id := testID()

	c.IncMessagesSent(id, "0")
	c.IncMessagesSent(id, "0")
	c.IncMessagesSent(id, "D")

	val := counterValue(t, c.MessagesSent, id.BeginString, id.SenderCompID, id.TargetCompID, "0")
	if val != 2 {
		t.Errorf("MessagesSent[0] = %v, want 2", val)
	}
	val = counterValue(t, c.MessagesSent, id.BeginString, id.SenderCompID, id.TargetCompID, "D")
	if val != 1 {
		t.Errorf("MessagesSent[D] = %v, want 1", val)
	}

	c.IncMessagesReceived(id, "8")
	val = counterValue(t, c.MessagesReceived, id.BeginString, id.SenderCompID, id.TargetCompID, "8")
	if val != 1 {
		t.Errorf("MessagesReceived[8] = %v, want 1", val)
	}
}

func TestGapAndResendCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := fixmetrics.NewCollector(reg)
	id := testID()

	c.IncGapsDetected(id)
	c.IncGapsDetected(id)
	val := counterValue(t, c.GapsDetected, id.BeginString, id.SenderCompID, id.TargetCompID)
	if val != 2 {
		t.Errorf("GapsDetected = %v, want 2", val)
	}

	c.IncResendsServiced(id)
	val = counterValue(t, c.ResendsServiced, id.BeginString, id.SenderCompID, id.TargetCompID)
	if val != 1 {
		t.Errorf("ResendsServiced = %v, want 1", val)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// gaugeValue reads the current value of a GaugeVec with the given labels.
func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}

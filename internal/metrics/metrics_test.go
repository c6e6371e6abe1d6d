package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"rotationctrl/internal/rotation"
)

func TestCollector_ObserveTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	c.ObserveTick(rotation.Report{Mode: rotation.CourseUp, TargetDeg: -10, RotationDeg: -10, Applied: true, Next: 5 * time.Second})
	c.ObserveTick(rotation.Report{Mode: rotation.CourseUp, TargetDeg: math.NaN(), RotationDeg: -10, Clamped: true, Next: 50 * time.Millisecond})
	c.ObserveOverride(rotation.CourseUp)

	if got := testutil.ToFloat64(c.Ticks.WithLabelValues("course_up")); got != 2 {
		t.Fatalf("ticks=%v want 2", got)
	}
	if got := testutil.ToFloat64(c.Applied); got != 1 {
		t.Fatalf("applied=%v want 1", got)
	}
	if got := testutil.ToFloat64(c.Clamped); got != 1 {
		t.Fatalf("clamped=%v want 1", got)
	}
	if got := testutil.ToFloat64(c.TargetDeg); got != -10 {
		t.Fatalf("target=%v want -10 (NaN ignored)", got)
	}
	if got := testutil.ToFloat64(c.NextTick); got != 0.05 {
		t.Fatalf("next=%v want 0.05", got)
	}
	if got := testutil.ToFloat64(c.Overrides.WithLabelValues("course_up")); got != 1 {
		t.Fatalf("overrides=%v want 1", got)
	}
}

func TestCollector_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	a.Applied.Inc()
	if got := testutil.ToFloat64(b.Applied); got != 1 {
		t.Fatalf("applied=%v want shared counter", got)
	}
	if b.Gatherer() != reg {
		t.Fatalf("gatherer not the registry")
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.ObserveTick(rotation.Report{})
	c.ObserveOverride(rotation.None)
	if c.Gatherer() != nil {
		t.Fatalf("nil collector gatherer")
	}
}

// Package metrics exposes the rotation control loop as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"rotationctrl/internal/angle"
	"rotationctrl/internal/rotation"
)

// Collector implements rotation.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	Ticks       *prometheus.CounterVec
	Applied     prometheus.Counter
	Clamped     prometheus.Counter
	Suppressed  prometheus.Counter
	Overrides   *prometheus.CounterVec
	RotationDeg prometheus.Gauge
	TargetDeg   prometheus.Gauge
	NextTick    prometheus.Gauge
}

// NewCollector registers the loop metrics against reg, reusing collectors
// that are already registered under the same name.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rotation_ticks_total",
		Help: "Tracking ticks run, by mode.",
	}, []string{"mode"}), "rotation_ticks_total")
	if err != nil {
		return nil, err
	}
	applied, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotation_commands_applied_total",
		Help: "Ticks that sent a rotation command to the viewport.",
	}), "rotation_commands_applied_total")
	if err != nil {
		return nil, err
	}
	clamped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotation_slew_clamped_total",
		Help: "Ticks whose rotation change was limited by the max slew rate.",
	}), "rotation_slew_clamped_total")
	if err != nil {
		return nil, err
	}
	suppressed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotation_warmup_suppressed_total",
		Help: "Ticks that emitted nothing while the slew limiter warmed up.",
	}), "rotation_warmup_suppressed_total")
	if err != nil {
		return nil, err
	}
	overrides, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rotation_external_overrides_total",
		Help: "Viewport rotations changed outside the controller, by the mode active at the time.",
	}, []string{"mode"}), "rotation_external_overrides_total")
	if err != nil {
		return nil, err
	}
	rot, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rotation_current_degrees",
		Help: "Viewport rotation after the last tick.",
	}), "rotation_current_degrees")
	if err != nil {
		return nil, err
	}
	target, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rotation_target_degrees",
		Help: "Target rotation computed by the last tick.",
	}), "rotation_target_degrees")
	if err != nil {
		return nil, err
	}
	next, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rotation_next_tick_seconds",
		Help: "Delay scheduled after the last tick.",
	}), "rotation_next_tick_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:    gatherer,
		Ticks:       ticks,
		Applied:     applied,
		Clamped:     clamped,
		Suppressed:  suppressed,
		Overrides:   overrides,
		RotationDeg: rot,
		TargetDeg:   target,
		NextTick:    next,
	}, nil
}

// Gatherer returns the gatherer to serve on /metrics.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

func (c *Collector) ObserveTick(r rotation.Report) {
	if c == nil {
		return
	}
	c.Ticks.WithLabelValues(r.Mode.String()).Inc()
	if r.Applied {
		c.Applied.Inc()
	}
	if r.Clamped {
		c.Clamped.Inc()
	}
	if r.Suppressed {
		c.Suppressed.Inc()
	}
	if angle.Defined(r.RotationDeg) {
		c.RotationDeg.Set(r.RotationDeg)
	}
	if angle.Defined(r.TargetDeg) {
		c.TargetDeg.Set(r.TargetDeg)
	}
	c.NextTick.Set(r.Next.Seconds())
}

func (c *Collector) ObserveOverride(m rotation.Mode) {
	if c == nil {
		return
	}
	c.Overrides.WithLabelValues(m.String()).Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

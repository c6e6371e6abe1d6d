// Package slew bounds how fast the viewport rotation may change per tick and
// decides when the next tick should run.
package slew

import (
	"math"
	"time"

	"rotationctrl/internal/angle"
)

const (
	// DefaultMaxRate is the default maximum change in degrees per tick.
	DefaultMaxRate = 20.0
	// MinApply is the smallest change worth sending to the viewport.
	MinApply = 1.0
	// RefreshInterval is used instead of the update interval while a
	// clamped move is still ramping toward its target.
	RefreshInterval = 50 * time.Millisecond
	// StartDelay arms the first tick after a mode switch.
	StartDelay = time.Millisecond
)

// Limiter holds the slew state for the active tracking mode.
//
// A fresh Limiter lets the first target through unclamped. The tick that
// sees the filter's warm-up request enables the limit and emits nothing;
// after that every move is clamped to MaxRate.
type Limiter struct {
	MaxRate float64

	// Limiting is set once warm-up finished; smoothing follows this flag.
	Limiting bool
}

// Step is the outcome of one limiter pass.
type Step struct {
	// Delta is the signed rotation in degrees to apply.
	Delta float64
	// Clamped reports that the move was cut short and a fast refresh is due.
	Clamped bool
	// Suppressed reports that nothing should be applied this tick.
	Suppressed bool
}

func New(maxRate float64) Limiter {
	if !(maxRate > 0) {
		maxRate = DefaultMaxRate
	}
	return Limiter{MaxRate: maxRate}
}

// Reset drops back to the unclamped initial state.
func (l *Limiter) Reset() {
	l.Limiting = false
}

// Step computes the delta from current toward target (both degrees).
// warmup carries the filter's request to start limiting.
func (l *Limiter) Step(target, current float64, warmup bool) Step {
	dr := angle.Delta(target, current)
	if !angle.Defined(dr) {
		return Step{Suppressed: true}
	}

	switch {
	case l.Limiting:
		if math.Abs(dr) > l.MaxRate {
			return Step{Delta: math.Copysign(l.MaxRate, dr), Clamped: true}
		}
		return Step{Delta: dr}
	case warmup:
		l.Limiting = true
		return Step{Suppressed: true}
	default:
		return Step{Delta: dr}
	}
}

// Next returns the delay before the following tick.
func Next(st Step, update time.Duration) time.Duration {
	if st.Clamped {
		return RefreshInterval
	}
	return update
}

// Negligible reports whether delta is too small to be worth applying.
func Negligible(delta float64) bool {
	return math.Abs(delta) < MinApply
}

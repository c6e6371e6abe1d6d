// Package filter implements first-order low-pass filters for circular
// quantities (bearings) and plain scalars (speeds).
//
// Circular inputs are blended through their sine/cosine components so that
// samples either side of the 0/360 seam average correctly.
//
// Not safe for concurrent use; callers own the state they pass in.
package filter

import (
	"math"

	"rotationctrl/internal/angle"
)

// Coefficient converts a filter time constant in seconds into the blend
// weight applied to each new sample. The result is clamped to (0, 1].
func Coefficient(seconds float64) float64 {
	if !(seconds > 1) {
		return 1
	}
	return 1 / seconds
}

// Angle blends input into prior and returns the new filtered bearing in
// degrees.
//
// An undefined input leaves prior unchanged. An undefined prior snaps to
// input. When smooth is false the input passes straight through.
func Angle(input, prior, coefficient float64, smooth bool) float64 {
	if !angle.Defined(input) {
		return prior
	}
	if !angle.Defined(prior) {
		return input
	}
	x := math.Sin(angle.DegToRad(input))
	y := math.Cos(angle.DegToRad(input))
	if smooth {
		lx := math.Sin(angle.DegToRad(prior))
		ly := math.Cos(angle.DegToRad(prior))
		x = coefficient*x + (1-coefficient)*lx
		y = coefficient*y + (1-coefficient)*ly
	}
	return angle.RadToDeg(math.Atan2(x, y))
}

// Scalar is the linear counterpart of Angle for magnitudes such as speed.
func Scalar(input, prior, coefficient float64) float64 {
	if !angle.Defined(input) {
		return prior
	}
	if !angle.Defined(prior) {
		return input
	}
	return coefficient*input + (1-coefficient)*prior
}

// State holds one filtered circular quantity.
type State struct {
	Value float64
}

// NewState returns a State with no value yet.
func NewState() State { return State{Value: angle.Undefined()} }

func (s State) Defined() bool { return angle.Defined(s.Value) }

// Reset forgets the filtered value.
func (s *State) Reset() { s.Value = angle.Undefined() }

// Update feeds input and reports whether both the sample and the prior
// value were defined, i.e. whether this was a steady-state (non-initial)
// sample.
func (s *State) Update(input, coefficient float64, smooth bool) (steady bool) {
	steady = angle.Defined(input) && s.Defined()
	s.Value = Angle(input, s.Value, coefficient, smooth)
	return steady
}

// Package wind resolves true wind direction from wind instrument readings.
package wind

import (
	"math"
	"strings"

	"rotationctrl/internal/angle"
)

// NoDataAngle is the instrument sentinel; angles at or above it mean the
// reading carries no direction.
const NoDataAngle = 999.0

// Unit is the speed unit letter used by wind instruments.
type Unit string

const (
	Knots           Unit = "N"
	KilometersPerHr Unit = "K"
	MetersPerSecond Unit = "M"
)

// KnotsFactor returns the multiplier that converts u into knots. Unknown
// units are treated as knots.
func (u Unit) KnotsFactor() float64 {
	switch Unit(strings.ToUpper(strings.TrimSpace(string(u)))) {
	case KilometersPerHr:
		return 0.53995
	case MetersPerSecond:
		return 1.94384
	default:
		return 1.0
	}
}

// Reading is one wind instrument sample.
type Reading struct {
	// AngleDeg is measured clockwise from the bow.
	AngleDeg float64
	Speed    float64
	Unit     Unit
	// Relative is true for apparent wind (measured on the moving vessel).
	Relative bool
}

// Valid reports whether the reading carries a direction.
func (r Reading) Valid() bool {
	return angle.Defined(r.AngleDeg) && r.AngleDeg < NoDataAngle
}

// TrueDirection returns the true wind direction in degrees, in [-180, 180),
// for a vessel moving at sogKt along cogDeg.
//
// ok is false when the reading is absent, a relative reading arrives without
// a vessel speed, or the triangle is degenerate (zero resulting wind speed);
// callers keep their previous estimate.
func TrueDirection(r Reading, sogKt, cogDeg float64) (deg float64, ok bool) {
	if !r.Valid() {
		return 0, false
	}
	w := r.AngleDeg
	if r.Relative {
		var solved bool
		w, solved = solve(r.AngleDeg, r.Speed*r.Unit.KnotsFactor(), sogKt)
		if !solved {
			return 0, false
		}
	}
	if !angle.Defined(cogDeg) {
		return 0, false
	}
	return angle.Canonical(w + cogDeg), true
}

// solve returns the true wind angle off the bow given apparent wind angle a
// (degrees) and speed va, and vessel speed vb.
//
// The true wind speed follows the law of cosines:
//
//	vw = sqrt(va² + vb² − 2·va·vb·cos(a))
//
// and the angle is taken with atan2 so both acute and obtuse solutions land
// in the right quadrant.
func solve(a, va, vb float64) (float64, bool) {
	if !angle.Defined(va) || !angle.Defined(vb) {
		return 0, false
	}
	if vb == 0 {
		// Vessel at rest: apparent and true wind coincide.
		return a, true
	}
	ar := angle.DegToRad(a)
	vw := math.Sqrt(va*va + vb*vb - 2*va*vb*math.Cos(ar))
	if !(vw > 1e-9) {
		return 0, false
	}
	x := va * math.Sin(ar)
	y := va*math.Cos(ar) - vb
	return angle.RadToDeg(math.Atan2(x, y)), true
}

// Speed returns the true wind speed in knots. It is NaN when the reading
// has no speed, or when a relative reading arrives without a vessel speed.
func Speed(r Reading, sogKt float64) float64 {
	va := r.Speed * r.Unit.KnotsFactor()
	if !angle.Defined(va) {
		return angle.Undefined()
	}
	if !r.Relative {
		return va
	}
	if !angle.Defined(sogKt) {
		return angle.Undefined()
	}
	ar := angle.DegToRad(r.AngleDeg)
	v := va*va + sogKt*sogKt - 2*va*sogKt*math.Cos(ar)
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

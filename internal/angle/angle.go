// Package angle provides wraparound-safe arithmetic on angles in degrees.
//
// Angles are plain float64 degrees with period 360. No canonical range is
// kept at rest; values are only resolved when two angles are compared or
// combined. NaN is used as the "undefined" marker and propagates through
// every function here.
package angle

import "math"

// Undefined returns the marker used for "no value yet".
func Undefined() float64 { return math.NaN() }

// Defined reports whether deg carries a usable value.
func Defined(deg float64) bool {
	return !math.IsNaN(deg) && !math.IsInf(deg, 0)
}

// Resolve returns the representative of deg (mod 360) lying in
// [offset-180, offset+180).
//
// Resolve(a-b, 0) is the signed shortest rotation from b to a.
func Resolve(deg, offset float64) float64 {
	if !Defined(deg) {
		return deg
	}
	lo := offset - 180
	r := math.Mod(deg-lo, 360)
	if r < 0 {
		r += 360
	}
	// math.Mod can round up to exactly 360 for tiny negative inputs.
	if r >= 360 {
		r -= 360
	}
	return r + lo
}

// Canonical maps deg into [-180, 180).
func Canonical(deg float64) float64 {
	return Resolve(deg, 0)
}

// Delta returns the signed shortest rotation in degrees that takes from to
// to, in [-180, 180).
func Delta(to, from float64) float64 {
	return Resolve(to-from, 0)
}

func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }

func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }

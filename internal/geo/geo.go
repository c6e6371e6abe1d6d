// Package geo computes bearing and distance between positions.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusNm is the mean earth radius in nautical miles.
const EarthRadiusNm = 3440.065

// BearingDistance returns the Mercator (rhumb line) bearing in degrees
// [0, 360) and the great-circle distance in nautical miles from
// (fromLat, fromLon) to (toLat, toLon).
func BearingDistance(fromLat, fromLon, toLat, toLon float64) (bearingDeg, distNm float64) {
	return MercatorBearing(fromLat, fromLon, toLat, toLon), DistanceNm(fromLat, fromLon, toLat, toLon)
}

// MercatorBearing projects both points to Mercator and takes the plane
// bearing between them. Longitude differences are taken the short way
// across the antimeridian.
func MercatorBearing(fromLat, fromLon, toLat, toLon float64) float64 {
	dLon := toLon - fromLon
	if dLon > 180 {
		dLon -= 360
	} else if dLon < -180 {
		dLon += 360
	}
	x := dLon * math.Pi / 180
	y := mercatorY(toLat) - mercatorY(fromLat)
	if x == 0 && y == 0 {
		return 0
	}
	b := math.Atan2(x, y) * 180 / math.Pi
	if b < 0 {
		b += 360
	}
	return b
}

func mercatorY(latDeg float64) float64 {
	// Clamp away from the poles where the projection diverges.
	lat := math.Max(-89.9, math.Min(89.9, latDeg)) * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + lat/2))
}

// DistanceNm is the great-circle distance in nautical miles.
func DistanceNm(fromLat, fromLon, toLat, toLon float64) float64 {
	a := s2.LatLngFromDegrees(fromLat, fromLon)
	b := s2.LatLngFromDegrees(toLat, toLon)
	return a.Distance(b).Radians() * EarthRadiusNm
}

package geo

import (
	"math"
	"testing"
)

func TestMercatorBearing_Cardinal(t *testing.T) {
	cases := []struct {
		name                       string
		lat0, lon0, lat1, lon1, bb float64
	}{
		{"north", 10, 20, 11, 20, 0},
		{"east", 0, 20, 0, 21, 90},
		{"south", 10, 20, 9, 20, 180},
		{"west", 0, 20, 0, 19, 270},
	}
	for _, c := range cases {
		got := MercatorBearing(c.lat0, c.lon0, c.lat1, c.lon1)
		if math.Abs(got-c.bb) > 1e-9 {
			t.Fatalf("%s: bearing=%v want %v", c.name, got, c.bb)
		}
	}
}

func TestMercatorBearing_Antimeridian(t *testing.T) {
	got := MercatorBearing(0, 179.5, 0, -179.5)
	if math.Abs(got-90) > 1e-9 {
		t.Fatalf("bearing=%v want 90", got)
	}
}

func TestDistanceNm_OneDegreeLatitude(t *testing.T) {
	d := DistanceNm(45, -122, 46, -122)
	if math.Abs(d-60) > 0.1 {
		t.Fatalf("distance=%v want ~60", d)
	}
}

func TestBearingDistance_SamePoint(t *testing.T) {
	b, d := BearingDistance(1, 2, 1, 2)
	if b != 0 || d != 0 {
		t.Fatalf("bearing=%v distance=%v want 0,0", b, d)
	}
}

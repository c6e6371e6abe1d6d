// Package sim drives a deterministic vessel for bench testing without
// instruments attached.
package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"rotationctrl/internal/angle"
	"rotationctrl/internal/nmea"
)

type Vessel struct {
	CenterLatDeg float64
	CenterLonDeg float64
	RadiusNm     float64
	Period       time.Duration

	// WindFromDeg/WindKt are the true wind.
	WindFromDeg float64
	WindKt      float64
	// VariationDeg is the magnetic declination, east positive.
	VariationDeg float64
}

// State is the vessel at one instant.
type State struct {
	LatDeg float64
	LonDeg float64
	CogDeg float64
	SogKt  float64
	// Apparent wind, angle off the bow in [0,360).
	AWADeg float64
	AWSKt  float64
}

func (v Vessel) period() time.Duration {
	if v.Period <= 0 {
		return 10 * time.Minute
	}
	return v.Period
}

func (v Vessel) radius() float64 {
	if v.RadiusNm <= 0 {
		return 0.5
	}
	return v.RadiusNm
}

// At returns the vessel state for now. The track is a figure-eight
// (Lissajous) around the center:
//
//	x = cos(2πt)
//	y = 0.5*sin(4πt)
func (v Vessel) At(now time.Time) State {
	period := v.period()
	r := v.radius()
	radiusDeg := r / 60.0

	phase := float64(now.UnixNano()%period.Nanoseconds()) / float64(period.Nanoseconds())
	w := 2 * math.Pi * phase
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	var s State
	s.LatDeg = v.CenterLatDeg + radiusDeg*y
	s.LonDeg = v.CenterLonDeg + radiusDeg*x/math.Cos(angle.DegToRad(v.CenterLatDeg))

	// Velocity in nm/s along east and north.
	k := r * 2 * math.Pi / period.Seconds()
	ve := -k * math.Sin(w)
	vn := k * math.Cos(2*w)
	s.CogDeg = math.Mod(angle.RadToDeg(math.Atan2(ve, vn))+360, 360)
	s.SogKt = math.Hypot(ve, vn) * 3600

	// Apparent wind = true wind - boat velocity, both as "blowing toward"
	// vectors in knots.
	twd := angle.DegToRad(v.WindFromDeg)
	we := -v.WindKt * math.Sin(twd)
	wn := -v.WindKt * math.Cos(twd)
	ae := we - ve*3600
	an := wn - vn*3600
	s.AWSKt = math.Hypot(ae, an)
	from := angle.RadToDeg(math.Atan2(-ae, -an))
	s.AWADeg = math.Mod(from-s.CogDeg+720, 360)
	return s
}

// Sentences renders the state at now as RMC, GGA, HDT, HDM and MWV.
// Heading is taken equal to course over ground.
func (v Vessel) Sentences(now time.Time) []string {
	s := v.At(now)
	utc := now.UTC()
	hms := fmt.Sprintf("%02d%02d%05.2f", utc.Hour(), utc.Minute(), float64(utc.Second())+float64(utc.Nanosecond())/1e9)
	dmy := utc.Format("020106")
	lat, ns := nmeaLat(s.LatDeg)
	lon, ew := nmeaLon(s.LonDeg)
	mag := math.Mod(s.CogDeg-v.VariationDeg+360, 360)

	return []string{
		nmea.Format(fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,%.1f,%.1f,%s,,", hms, lat, ns, lon, ew, s.SogKt, s.CogDeg, dmy)),
		nmea.Format(fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,08,0.9,0.0,M,0.0,M,,", hms, lat, ns, lon, ew)),
		nmea.Format(fmt.Sprintf("IIHDT,%.1f,T", s.CogDeg)),
		nmea.Format(fmt.Sprintf("IIHDM,%.1f,M", mag)),
		nmea.Format(fmt.Sprintf("WIMWV,%.1f,R,%.1f,N,A", s.AWADeg, s.AWSKt)),
	}
}

func nmeaLat(deg float64) (string, string) {
	h := "N"
	if deg < 0 {
		h = "S"
		deg = -deg
	}
	d := math.Floor(deg)
	return fmt.Sprintf("%02d%07.4f", int(d), (deg-d)*60), h
}

func nmeaLon(deg float64) (string, string) {
	h := "E"
	if deg < 0 {
		h = "W"
		deg = -deg
	}
	d := math.Floor(deg)
	return fmt.Sprintf("%03d%07.4f", int(d), (deg-d)*60), h
}

// Run emits Sentences every interval until ctx is cancelled.
func (v Vessel) Run(ctx context.Context, interval time.Duration, emit func(line string)) error {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		for _, line := range v.Sentences(time.Now()) {
			emit(line)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

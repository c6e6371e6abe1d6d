package nmea

import (
	"strconv"
	"strings"
	"time"

	"rotationctrl/internal/angle"
	"rotationctrl/internal/rotation"
	"rotationctrl/internal/wind"
)

// Decoder merges RMC and GGA into one fix and converts heading and wind
// sentences into controller events. Not safe for concurrent use.
type Decoder struct {
	fix   rotation.Fix
	latOK bool
	lonOK bool
}

func NewDecoder() *Decoder {
	return &Decoder{fix: rotation.NoFix()}
}

// Fix returns the merged fix so far.
func (d *Decoder) Fix() rotation.Fix { return d.fix }

// Decode parses one line. It returns nil with no error for sentence types
// the controller does not use, or for sentences that carry no valid data.
func (d *Decoder) Decode(line string) (rotation.Event, error) {
	s, err := parseSentence(line)
	if err != nil {
		return nil, err
	}
	switch s.Type {
	case "RMC":
		return d.applyRMC(s.Fields), nil
	case "GGA":
		return d.applyGGA(s.Fields), nil
	case "HDT":
		return heading(s.Fields, false), nil
	case "HDM":
		return heading(s.Fields, true), nil
	case "MWV":
		return mwv(s.Fields), nil
	default:
		return nil, nil
	}
}

// RMC: Recommended Minimum Specific GNSS Data
//
//	1: time (hhmmss.sss)
//	2: status (A=active, V=void)
//	3,4: latitude, N/S
//	5,6: longitude, E/W
//	7: speed over ground (knots)
//	8: course over ground (deg)
//	9: date (ddmmyy)
func (d *Decoder) applyRMC(f []string) rotation.Event {
	if len(f) < 10 {
		return nil
	}
	if strings.TrimSpace(f[2]) != "A" {
		return nil
	}
	if lat, ok := parseLatLon(f[3], f[4]); ok {
		d.fix.LatDeg = lat
		d.latOK = true
	}
	if lon, ok := parseLatLon(f[5], f[6]); ok {
		d.fix.LonDeg = lon
		d.lonOK = true
	}
	// Empty speed/course fields mean "not available", never zero.
	d.fix.SogKt = angle.Undefined()
	if sog, ok := parseFloat(f[7]); ok {
		d.fix.SogKt = sog
	}
	d.fix.CogDeg = angle.Undefined()
	if cog, ok := parseFloat(f[8]); ok {
		d.fix.CogDeg = cog
	}
	if ts, ok := parseDateTime(f[9], f[1]); ok {
		d.fix.Time = ts
	}
	if !d.latOK || !d.lonOK {
		return nil
	}
	return rotation.FixUpdate{Fix: d.fix}
}

// GGA: Global Positioning System Fix Data
//
//	2,3: latitude, N/S
//	4,5: longitude, E/W
//	6: fix quality (0=invalid)
//	7: number of satellites
func (d *Decoder) applyGGA(f []string) rotation.Event {
	if len(f) < 8 {
		return nil
	}
	q := strings.TrimSpace(f[6])
	if q == "" || q == "0" {
		d.fix.Satellites = 0
		return nil
	}
	if sats, err := strconv.Atoi(strings.TrimSpace(f[7])); err == nil {
		d.fix.Satellites = sats
	}
	if lat, ok := parseLatLon(f[2], f[3]); ok {
		d.fix.LatDeg = lat
		d.latOK = true
	}
	if lon, ok := parseLatLon(f[4], f[5]); ok {
		d.fix.LonDeg = lon
		d.lonOK = true
	}
	if !d.latOK || !d.lonOK {
		return nil
	}
	return rotation.FixUpdate{Fix: d.fix}
}

// HDT/HDM: 1: heading, 2: T or M
func heading(f []string, magnetic bool) rotation.Event {
	if len(f) < 2 {
		return nil
	}
	deg, ok := parseFloat(f[1])
	if !ok || !angle.Defined(deg) {
		return nil
	}
	return rotation.HeadingUpdate{Deg: deg, Magnetic: magnetic}
}

// MWV: Wind Speed and Angle
//
//	1: wind angle (deg)
//	2: reference (R=relative, T=true)
//	3: wind speed
//	4: speed units (K, M, N)
//	5: status (A=valid)
func mwv(f []string) rotation.Event {
	if len(f) < 6 {
		return nil
	}
	if strings.TrimSpace(f[5]) != "A" {
		return nil
	}
	a, ok := parseFloat(f[1])
	if !ok {
		return nil
	}
	r := wind.Reading{
		AngleDeg: a,
		Speed:    angle.Undefined(),
		Unit:     wind.Unit(strings.ToUpper(strings.TrimSpace(f[4]))),
		Relative: strings.EqualFold(strings.TrimSpace(f[2]), "R"),
	}
	if v, ok := parseFloat(f[3]); ok {
		r.Speed = v
	}
	if !r.Valid() {
		return nil
	}
	return rotation.WindUpdate{Reading: r}
}

// parseDateTime combines an RMC ddmmyy date and hhmmss.sss time.
func parseDateTime(date, clock string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if len(date) != 6 || len(clock) < 6 {
		return time.Time{}, false
	}
	frac := 0.0
	if dot := strings.IndexByte(clock, '.'); dot != -1 {
		v, err := strconv.ParseFloat("0"+clock[dot:], 64)
		if err != nil {
			return time.Time{}, false
		}
		frac = v
		clock = clock[:dot]
	}
	ts, err := time.Parse("020106150405", date+clock)
	if err != nil {
		return time.Time{}, false
	}
	return ts.Add(time.Duration(frac * float64(time.Second))), true
}

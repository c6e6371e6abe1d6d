package rotation

import (
	"time"

	"rotationctrl/internal/angle"
)

// Status is a JSON-friendly snapshot of the controller. Undefined values are
// nil.
type Status struct {
	Mode Mode `json:"mode"`
	// Tools are the tools shown on the toolbar, in order.
	Tools []Mode `json:"tools"`

	RotationDeg float64  `json:"rotation_deg"`
	TiltDeg     float64  `json:"tilt_deg"`
	RotatingDir int      `json:"rotating_dir"`
	TiltingDir  int      `json:"tilting_dir"`
	CourseDeg   *float64 `json:"course_deg"`
	SpeedKt     *float64 `json:"speed_kt"`
	HeadingDeg  *float64 `json:"heading_deg"`
	TrueWindDeg *float64 `json:"true_wind_deg"`
	TrueWindKt  *float64 `json:"true_wind_kt"`

	RouteGUID       string   `json:"route_guid,omitempty"`
	RouteBearingDeg *float64 `json:"route_bearing_deg"`
	RouteDistanceNm *float64 `json:"route_distance_nm"`

	Limiting bool `json:"limiting"`

	Fix struct {
		LatDeg     *float64  `json:"lat_deg"`
		LonDeg     *float64  `json:"lon_deg"`
		CogDeg     *float64  `json:"cog_deg"`
		SogKt      *float64  `json:"sog_kt"`
		Satellites int       `json:"satellites"`
		LastFix    time.Time `json:"last_fix,omitempty"`
	} `json:"fix"`

	DeclinationDeg *float64  `json:"declination_deg"`
	DeclinationAt  time.Time `json:"declination_at,omitempty"`

	Ticks     uint64 `json:"ticks"`
	Overrides uint64 `json:"overrides"`
}

func opt(v float64) *float64 {
	if !angle.Defined(v) {
		return nil
	}
	return &v
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	var s Status
	s.Mode = c.state.Mode
	s.Tools = c.settings.VisibleTools()
	s.RotationDeg = angle.RadToDeg(c.vp.Rotation)
	s.TiltDeg = angle.RadToDeg(c.vp.Tilt)
	s.RotatingDir = c.rotationDir
	s.TiltingDir = c.tiltDir
	s.CourseDeg = opt(c.state.Course.Value)
	s.SpeedKt = opt(c.state.SpeedKt)
	s.HeadingDeg = opt(c.state.Heading.Value)
	s.TrueWindDeg = opt(c.state.TrueWind.Value)
	s.TrueWindKt = opt(c.state.TrueWindKt)
	s.RouteGUID = c.state.Route.GUID
	s.RouteBearingDeg = opt(c.state.Route.Bearing.Value)
	s.RouteDistanceNm = opt(c.state.Route.DistanceNm)
	s.Limiting = c.state.Slew.Limiting

	s.Fix.LatDeg = opt(c.fix.LatDeg)
	s.Fix.LonDeg = opt(c.fix.LonDeg)
	s.Fix.CogDeg = opt(c.fix.CogDeg)
	s.Fix.SogKt = opt(c.fix.SogKt)
	s.Fix.Satellites = c.fix.Satellites
	s.Fix.LastFix = c.lastFixTime

	if c.declination.Valid() {
		s.DeclinationDeg = opt(c.declination.Deg)
		s.DeclinationAt = c.declination.ReceivedAt
	}
	s.Ticks = c.ticks
	s.Overrides = c.overrides
	return s
}

// Settings returns the preferences in effect.
func (c *Controller) Settings() Settings { return c.settings }

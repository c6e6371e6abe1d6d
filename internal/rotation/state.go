package rotation

import (
	"time"

	"rotationctrl/internal/angle"
	"rotationctrl/internal/filter"
	"rotationctrl/internal/slew"
)

// Settings are the operator preferences in effect for a tick. They are
// replaced wholesale on a preferences change.
type Settings struct {
	// UpdateInterval is the period between tracking ticks.
	UpdateInterval time.Duration
	// FilterCoefficient is the per-sample blend weight, in (0, 1].
	FilterCoefficient float64
	// MaxSlewRate is the largest rotation change per tick, in degrees.
	MaxSlewRate float64
	// RotationOffset is added to every tracking target, in degrees.
	RotationOffset float64
	// Visible lists the tools shown on the toolbar.
	Visible map[Mode]bool
}

// VisibleTools returns the shown tools in toolbar order.
func (s Settings) VisibleTools() []Mode {
	out := make([]Mode, 0, len(Tools))
	for _, m := range Tools {
		if s.Visible[m] {
			out = append(out, m)
		}
	}
	return out
}

func DefaultSettings() Settings {
	return Settings{
		UpdateInterval:    5 * time.Second,
		FilterCoefficient: filter.Coefficient(10),
		MaxSlewRate:       slew.DefaultMaxRate,
		Visible: map[Mode]bool{
			NorthUp:  true,
			CourseUp: true,
		},
	}
}

// Fix is the latest position/course/speed sample. Missing values are NaN.
type Fix struct {
	LatDeg     float64
	LonDeg     float64
	CogDeg     float64
	SogKt      float64
	Satellites int
	Time       time.Time
}

// NoFix returns a Fix with every value missing.
func NoFix() Fix {
	return Fix{
		LatDeg: angle.Undefined(),
		LonDeg: angle.Undefined(),
		CogDeg: angle.Undefined(),
		SogKt:  angle.Undefined(),
	}
}

// Viewport is the chart view state, angles in radians.
type Viewport struct {
	Rotation float64 `json:"rotation"`
	Tilt     float64 `json:"tilt"`
}

// RouteTarget is the waypoint followed in route-up mode.
type RouteTarget struct {
	GUID string
	// LatDeg/LonDeg are the coordinates seen on the previous tick.
	LatDeg  float64
	LonDeg  float64
	Bearing filter.State
	// DistanceNm is the latest great-circle distance to the waypoint.
	DistanceNm float64
}

// State is everything a tick reads and writes.
type State struct {
	Mode Mode

	Course     filter.State
	SpeedKt    float64
	Heading    filter.State
	TrueWind   filter.State
	TrueWindKt float64
	Route      RouteTarget

	Slew slew.Limiter
}

func NewState(maxSlewRate float64) State {
	st := State{Slew: slew.New(maxSlewRate)}
	st.Reset()
	return st
}

// Reset clears filtered estimates and slew state. The mode and the route
// target's GUID are kept.
func (s *State) Reset() {
	s.Course.Reset()
	s.SpeedKt = angle.Undefined()
	s.Heading.Reset()
	s.TrueWind.Reset()
	s.TrueWindKt = angle.Undefined()
	s.Route.Bearing.Reset()
	s.Route.LatDeg = angle.Undefined()
	s.Route.LonDeg = angle.Undefined()
	s.Route.DistanceNm = angle.Undefined()
	s.Slew.Reset()
}

package rotation

import (
	"time"

	"rotationctrl/internal/angle"
	"rotationctrl/internal/filter"
	"rotationctrl/internal/geo"
	"rotationctrl/internal/slew"
	"rotationctrl/internal/waypoint"
)

// WaypointLookup resolves a waypoint GUID to its current position.
type WaypointLookup interface {
	Lookup(guid string) (waypoint.Waypoint, error)
}

// BearingFunc returns bearing (degrees) and distance (nm) between two
// positions.
type BearingFunc func(fromLat, fromLon, toLat, toLon float64) (bearingDeg, distNm float64)

// Env is the read-only input to a tick.
type Env struct {
	Fix       Fix
	Settings  Settings
	Waypoints WaypointLookup
	Bearing   BearingFunc
	// CurrentDeg is the rotation currently shown, in degrees.
	CurrentDeg float64
}

// Command asks the viewport to rotate to RotationRad.
type Command struct {
	RotationRad float64
}

// Result is the outcome of a tick.
type Result struct {
	State State
	// Command is nil when nothing should be applied.
	Command *Command
	// Reschedule is false when no tracking mode is active.
	Reschedule bool
	Next       time.Duration

	TargetDeg float64
	Step      slew.Step
}

// Tick runs one recomputation for the active tracking mode. It does not
// touch anything outside st and the returned Result.
func Tick(st State, env Env) Result {
	if !st.Mode.Tracking() {
		return Result{State: st, TargetDeg: angle.Undefined()}
	}
	coef := env.Settings.FilterCoefficient

	steady := st.Course.Update(env.Fix.CogDeg, coef, st.Slew.Limiting)
	warmup := steady && st.Mode == CourseUp
	st.SpeedKt = filter.Scalar(env.Fix.SogKt, st.SpeedKt, coef)

	var target float64
	switch st.Mode {
	case CourseUp:
		target = courseUpTarget(&st)
	case HeadingUp:
		target = headingUpTarget(&st)
	case RouteUp:
		target = routeUpTarget(&st, env)
	case WindUp:
		target = windUpTarget(&st)
	}
	target += env.Settings.RotationOffset

	step := st.Slew.Step(target, env.CurrentDeg, warmup)
	res := Result{
		State:      st,
		Reschedule: true,
		Next:       slew.Next(step, env.Settings.UpdateInterval),
		TargetDeg:  target,
		Step:       step,
	}
	if step.Suppressed || slew.Negligible(step.Delta) {
		return res
	}
	rot := angle.Canonical(env.CurrentDeg + step.Delta)
	if !angle.Defined(rot) {
		return res
	}
	res.Command = &Command{RotationRad: angle.DegToRad(rot)}
	return res
}

func courseUpTarget(st *State) float64 {
	return -st.Course.Value
}

func headingUpTarget(st *State) float64 {
	return -st.Heading.Value
}

func windUpTarget(st *State) float64 {
	return -st.TrueWind.Value
}

// routeUpTarget follows the bearing from the vessel to the tracked
// waypoint. A waypoint that moved since the last tick restarts filtering.
// If the waypoint cannot be found the previous bearing is kept.
func routeUpTarget(st *State, env Env) float64 {
	if env.Waypoints == nil || st.Route.GUID == "" {
		return -st.Route.Bearing.Value
	}
	wp, err := env.Waypoints.Lookup(st.Route.GUID)
	if err != nil {
		return -st.Route.Bearing.Value
	}
	if wp.LatDeg != st.Route.LatDeg || wp.LonDeg != st.Route.LonDeg {
		st.Reset()
	}
	st.Route.LatDeg = wp.LatDeg
	st.Route.LonDeg = wp.LonDeg

	bearing := env.Bearing
	if bearing == nil {
		bearing = geo.BearingDistance
	}
	if angle.Defined(env.Fix.LatDeg) && angle.Defined(env.Fix.LonDeg) {
		brg, dist := bearing(env.Fix.LatDeg, env.Fix.LonDeg, wp.LatDeg, wp.LonDeg)
		st.Route.DistanceNm = dist
		st.Route.Bearing.Update(brg, env.Settings.FilterCoefficient, st.Slew.Limiting)
	}
	return -st.Route.Bearing.Value
}

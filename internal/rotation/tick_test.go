package rotation

import (
	"math"
	"testing"
	"time"

	"rotationctrl/internal/angle"
	"rotationctrl/internal/waypoint"
)

func cogFix(cog float64) Fix {
	f := NoFix()
	f.CogDeg = cog
	f.SogKt = 5
	return f
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTick_NoTrackingModeDoesNotReschedule(t *testing.T) {
	st := NewState(20)
	res := Tick(st, Env{Fix: cogFix(10), Settings: DefaultSettings()})
	if res.Reschedule || res.Command != nil {
		t.Fatalf("res=%+v want idle", res)
	}
}

func TestTick_CourseUpSteadyState(t *testing.T) {
	s := DefaultSettings()
	st := NewState(s.MaxSlewRate)
	st.Mode = CourseUp

	cur := 0.0
	var applied []float64
	for i := 0; i < 4; i++ {
		res := Tick(st, Env{Fix: cogFix(10), Settings: s, CurrentDeg: cur})
		st = res.State
		if !res.Reschedule {
			t.Fatalf("tick %d: not rescheduled", i)
		}
		if res.Next != s.UpdateInterval {
			t.Fatalf("tick %d: next=%v want %v", i, res.Next, s.UpdateInterval)
		}
		if res.Command != nil {
			cur = angle.RadToDeg(res.Command.RotationRad)
			applied = append(applied, cur)
		}
		if !near(res.TargetDeg, -10) {
			t.Fatalf("tick %d: target=%v want -10", i, res.TargetDeg)
		}
	}
	if len(applied) != 1 || !near(applied[0], -10) {
		t.Fatalf("applied=%v want [-10]", applied)
	}
	if !st.Slew.Limiting {
		t.Fatalf("limiting not enabled after warm-up")
	}
}

func TestTick_CourseUpWarmUpTickNeverSnaps(t *testing.T) {
	s := DefaultSettings()
	st := NewState(s.MaxSlewRate)
	st.Mode = CourseUp

	cur := 0.0
	var steps []float64
	for i, cog := range []float64{10, 100, 100, 100} {
		res := Tick(st, Env{Fix: cogFix(cog), Settings: s, CurrentDeg: cur})
		st = res.State
		if i == 1 && (res.Command != nil || !res.Step.Suppressed || !st.Slew.Limiting) {
			t.Fatalf("warm-up tick: res=%+v limiting=%v", res, st.Slew.Limiting)
		}
		if res.Command != nil {
			next := angle.RadToDeg(res.Command.RotationRad)
			steps = append(steps, angle.Delta(next, cur))
			cur = next
		}
	}
	if len(steps) != 3 || !near(steps[0], -10) {
		t.Fatalf("steps=%v", steps)
	}
	for _, d := range steps[1:] {
		if math.Abs(d) > s.MaxSlewRate+1e-9 {
			t.Fatalf("steps=%v exceed max slew %v", steps, s.MaxSlewRate)
		}
	}
}

func TestTick_CourseUpAddsOffset(t *testing.T) {
	s := DefaultSettings()
	s.RotationOffset = 30
	st := NewState(s.MaxSlewRate)
	st.Mode = CourseUp
	res := Tick(st, Env{Fix: cogFix(10), Settings: s})
	if res.Command == nil {
		t.Fatalf("expected command")
	}
	if got := angle.RadToDeg(res.Command.RotationRad); !near(got, 20) {
		t.Fatalf("rotation=%v want 20", got)
	}
}

func TestTick_ClampedMoveUsesFastRefresh(t *testing.T) {
	s := DefaultSettings()
	st := NewState(20)
	st.Mode = CourseUp
	st.Slew.Limiting = true
	st.Course.Value = 90
	s.FilterCoefficient = 1

	res := Tick(st, Env{Fix: cogFix(90), Settings: s, CurrentDeg: 0})
	if !res.Step.Clamped || res.Step.Delta != -20 {
		t.Fatalf("step=%+v want clamped -20", res.Step)
	}
	if res.Next != 50*time.Millisecond {
		t.Fatalf("next=%v want 50ms", res.Next)
	}
	if got := angle.RadToDeg(res.Command.RotationRad); !near(got, -20) {
		t.Fatalf("rotation=%v want -20", got)
	}
}

func TestTick_SmallChangeSkippedButRescheduled(t *testing.T) {
	s := DefaultSettings()
	st := NewState(20)
	st.Mode = CourseUp
	res := Tick(st, Env{Fix: cogFix(0.5), Settings: s, CurrentDeg: 0})
	if res.Command != nil {
		t.Fatalf("command=%+v want nil", res.Command)
	}
	if !res.Reschedule {
		t.Fatalf("expected reschedule")
	}
}

func TestTick_MissingCourseKeepsEstimate(t *testing.T) {
	s := DefaultSettings()
	st := NewState(20)
	st.Mode = CourseUp
	st = Tick(st, Env{Fix: cogFix(40), Settings: s}).State
	st = Tick(st, Env{Fix: NoFix(), Settings: s, CurrentDeg: -40}).State
	if !near(st.Course.Value, 40) {
		t.Fatalf("course=%v want 40", st.Course.Value)
	}
}

func TestTick_HeadingUpFollowsHeadingFilter(t *testing.T) {
	s := DefaultSettings()
	st := NewState(20)
	st.Mode = HeadingUp
	st.Heading.Value = 45
	res := Tick(st, Env{Fix: NoFix(), Settings: s})
	if got := angle.RadToDeg(res.Command.RotationRad); !near(got, -45) {
		t.Fatalf("rotation=%v want -45", got)
	}
}

func TestTick_WindUpFollowsTrueWind(t *testing.T) {
	s := DefaultSettings()
	st := NewState(20)
	st.Mode = WindUp
	st.TrueWind.Value = -120
	res := Tick(st, Env{Fix: NoFix(), Settings: s})
	if got := angle.RadToDeg(res.Command.RotationRad); !near(got, 120) {
		t.Fatalf("rotation=%v want 120", got)
	}
}

func TestTick_RouteUpResetsWhenWaypointMoves(t *testing.T) {
	s := DefaultSettings()
	wps := waypoint.NewStore([]waypoint.Waypoint{{GUID: "wp1", LatDeg: 1, LonDeg: 0}})
	bearing := 30.0
	bf := func(_, _, _, _ float64) (float64, float64) { return bearing, 1 }

	st := NewState(20)
	st.Mode = RouteUp
	st.Route.GUID = "wp1"
	fix := NoFix()
	fix.LatDeg, fix.LonDeg = 0, 0

	env := Env{Fix: fix, Settings: s, Waypoints: wps, Bearing: bf}
	res := Tick(st, env)
	st = res.State
	if !near(st.Route.Bearing.Value, 30) {
		t.Fatalf("bearing=%v want 30", st.Route.Bearing.Value)
	}
	env.CurrentDeg = angle.RadToDeg(res.Command.RotationRad)

	// Same waypoint: the estimate carries over.
	bearing = 32
	st.Slew.Limiting = true
	st = Tick(st, env).State
	if near(st.Route.Bearing.Value, 32) || near(st.Route.Bearing.Value, 30) {
		t.Fatalf("bearing=%v want smoothed between 30 and 32", st.Route.Bearing.Value)
	}

	// Moved waypoint: state resets and the fresh bearing is taken unsmoothed.
	if err := wps.Put(waypoint.Waypoint{GUID: "wp1", LatDeg: 2, LonDeg: 0}); err != nil {
		t.Fatalf("put: %v", err)
	}
	bearing = 80
	st = Tick(st, env).State
	if !near(st.Route.Bearing.Value, 80) {
		t.Fatalf("bearing=%v want 80 after reset", st.Route.Bearing.Value)
	}
	if st.Slew.Limiting {
		t.Fatalf("slew not reset after waypoint change")
	}
	if st.Route.LatDeg != 2 {
		t.Fatalf("route lat=%v want 2", st.Route.LatDeg)
	}
}

func TestTick_RouteUpKeepsDistance(t *testing.T) {
	wps := waypoint.NewStore([]waypoint.Waypoint{{GUID: "wp1", LatDeg: 1, LonDeg: 0}})
	bf := func(_, _, _, _ float64) (float64, float64) { return 30, 4.5 }
	st := NewState(20)
	st.Mode = RouteUp
	st.Route.GUID = "wp1"
	if angle.Defined(st.Route.DistanceNm) {
		t.Fatalf("distance=%v want undefined before first fix", st.Route.DistanceNm)
	}

	res := Tick(st, Env{Fix: NoFix(), Settings: DefaultSettings(), Waypoints: wps, Bearing: bf})
	if angle.Defined(res.State.Route.DistanceNm) {
		t.Fatalf("distance=%v want undefined without position", res.State.Route.DistanceNm)
	}

	fix := NoFix()
	fix.LatDeg, fix.LonDeg = 0, 0
	res = Tick(res.State, Env{Fix: fix, Settings: DefaultSettings(), Waypoints: wps, Bearing: bf})
	if res.State.Route.DistanceNm != 4.5 {
		t.Fatalf("distance=%v want 4.5", res.State.Route.DistanceNm)
	}
}

func TestTick_RouteUpUnknownWaypointKeepsBearing(t *testing.T) {
	s := DefaultSettings()
	st := NewState(20)
	st.Mode = RouteUp
	st.Route.GUID = "missing"
	st.Route.Bearing.Value = 15
	res := Tick(st, Env{Fix: cogFix(0), Settings: s, Waypoints: waypoint.NewStore(nil)})
	if !near(res.TargetDeg, -15) {
		t.Fatalf("target=%v want -15", res.TargetDeg)
	}
}

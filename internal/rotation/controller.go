package rotation

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"rotationctrl/internal/angle"
	"rotationctrl/internal/bus"
	"rotationctrl/internal/filter"
	"rotationctrl/internal/geo"
	"rotationctrl/internal/slew"
	"rotationctrl/internal/wind"
)

const (
	// OverrideThresholdDeg is how far the viewport may drift from the last
	// commanded rotation before the change is treated as external.
	OverrideThresholdDeg = 0.1
	// ManualRateDegPerSec is the hold-to-rotate/tilt speed.
	ManualRateDegPerSec = 60.0
	// PrecisionRateDegPerSec applies while the modifier key is held.
	PrecisionRateDegPerSec = 6.0
	// ManualStepCap bounds one integration step after a stall.
	ManualStepCap = 500 * time.Millisecond
)

// Scheduler arms the single-shot tick timer. Schedule replaces any pending
// tick.
type Scheduler interface {
	Schedule(d time.Duration)
	Stop()
}

// Display receives everything the controller wants shown.
type Display interface {
	SetRotation(rad float64)
	SetTilt(rad float64)
	// SetActiveTool lights the indicator for m; None clears all of them.
	SetActiveTool(m Mode)
	// SetVisibleTools lists the tools the operator chose to show.
	SetVisibleTools(tools []Mode)
	// RequestRefresh asks for a fresh viewport notification.
	RequestRefresh()
	// Notice shows an informational message to the operator.
	Notice(msg string)
}

// Publisher sends inter-module messages.
type Publisher interface {
	Publish(msg bus.Message) int
}

// Observer is notified of control loop activity.
type Observer interface {
	ObserveTick(r Report)
	ObserveOverride(m Mode)
}

// Report summarizes one tick for observers.
type Report struct {
	At          time.Time
	Mode        Mode
	TargetDeg   float64
	RotationDeg float64
	Applied     bool
	Clamped     bool
	Suppressed  bool
	Next        time.Duration
}

type Options struct {
	Settings  Settings
	Scheduler Scheduler
	Display   Display
	Waypoints WaypointLookup
	Bearing   BearingFunc
	Publisher Publisher
	Observers []Observer
	Logger    *slog.Logger
	Now       func() time.Time
}

// Controller owns all rotation state. It is not safe for concurrent use;
// Loop serializes access.
type Controller struct {
	settings Settings
	state    State
	fix      Fix

	lastFixTime time.Time

	vp     Viewport
	haveVP bool
	active Mode

	rotationDir int
	tiltDir     int
	lastManual  time.Time

	declination Declination

	ticks     uint64
	overrides uint64

	sched     Scheduler
	display   Display
	waypoints WaypointLookup
	bearing   BearingFunc
	pub       Publisher
	observers []Observer
	log       *slog.Logger
	now       func() time.Time
}

func NewController(opts Options) *Controller {
	if opts.Settings.UpdateInterval <= 0 {
		opts.Settings = DefaultSettings()
	}
	if opts.Bearing == nil {
		opts.Bearing = geo.BearingDistance
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Controller{
		settings:  opts.Settings,
		state:     NewState(opts.Settings.MaxSlewRate),
		fix:       NoFix(),
		sched:     opts.Scheduler,
		display:   opts.Display,
		waypoints: opts.Waypoints,
		bearing:   opts.Bearing,
		pub:       opts.Publisher,
		observers: opts.Observers,
		log:       opts.Logger,
		now:       opts.Now,
	}
	c.showTools()
	return c
}

// Reset returns the controller to its constructed state, keeping settings,
// the last fix and the viewport.
func (c *Controller) Reset() {
	c.deactivate()
	c.state = NewState(c.settings.MaxSlewRate)
	c.rotationDir, c.tiltDir = 0, 0
}

// ApplySettings installs new preferences. warnings are shown to the
// operator, e.g. for values that were corrected on load.
func (c *Controller) ApplySettings(s Settings, warnings []string) {
	c.settings = s
	c.state.Slew.MaxRate = s.MaxSlewRate
	c.showTools()
	for _, w := range warnings {
		c.log.Warn("settings corrected", "warning", w)
		if c.display != nil {
			c.display.Notice(w)
		}
	}
	c.log.Info("settings applied",
		"update_interval", s.UpdateInterval.String(),
		"filter_coefficient", s.FilterCoefficient,
		"max_slew_rate", s.MaxSlewRate,
		"rotation_offset", s.RotationOffset)
}

// ClickTool handles a completed toolbar press on m.
func (c *Controller) ClickTool(m Mode) {
	c.state.Slew.Reset()
	switch {
	case m == NorthUp:
		c.deactivate()
		c.setRotation(0)
	case m == SouthUp:
		c.deactivate()
		c.setRotation(math.Pi)
	case m.Tracking():
		if c.state.Mode == m {
			c.log.Info("tracking stopped", "mode", m.String())
			c.deactivate()
			return
		}
		c.state.Reset()
		c.rotationDir, c.tiltDir = 0, 0
		c.state.Mode = m
		c.setActive(m)
		c.log.Info("tracking started", "mode", m.String())
		c.schedule(slew.StartDelay)
	}
}

// PressTool starts a manual rotate or tilt. Rotating by hand ends any
// tracking mode.
func (c *Controller) PressTool(m Mode) {
	switch m {
	case ManualRotateCCW:
		c.rotationDir = -1
	case ManualRotateCW:
		c.rotationDir = 1
	case ManualTiltUp:
		c.tiltDir = -1
	case ManualTiltDown:
		c.tiltDir = 1
	default:
		return
	}
	if m == ManualRotateCCW || m == ManualRotateCW {
		if c.state.Mode.Tracking() {
			c.log.Info("tracking stopped by manual rotate", "mode", c.state.Mode.String())
			c.deactivate()
		}
	}
	c.lastManual = c.now()
	if c.display != nil {
		c.display.RequestRefresh()
	}
}

// ReleaseTool ends any manual rotate or tilt.
func (c *Controller) ReleaseTool(Mode) {
	c.rotationDir = 0
	c.tiltDir = 0
}

// ViewportChanged handles a viewport notification. A rotation that differs
// from what this controller last commanded is an operator override. While a
// manual tool is held the elapsed time is integrated into rotation and tilt.
func (c *Controller) ViewportChanged(vp Viewport, precision bool) {
	if c.haveVP {
		drift := angle.Canonical(angle.RadToDeg(c.vp.Rotation - vp.Rotation))
		if math.Abs(drift) > OverrideThresholdDeg {
			c.override(drift)
		}
	}
	c.vp = vp
	c.haveVP = true

	if c.rotationDir == 0 && c.tiltDir == 0 {
		return
	}
	now := c.now()
	var dt time.Duration
	if !c.lastManual.IsZero() {
		dt = now.Sub(c.lastManual)
	}
	if dt > ManualStepCap {
		dt = ManualStepCap
	}
	if dt < 0 {
		dt = 0
	}
	rate := ManualRateDegPerSec
	if precision {
		rate = PrecisionRateDegPerSec
	}
	step := angle.DegToRad(rate * dt.Seconds())
	if c.rotationDir != 0 {
		c.setRotation(vp.Rotation + float64(c.rotationDir)*step)
	}
	if c.tiltDir != 0 {
		c.setTilt(vp.Tilt + float64(c.tiltDir)*step)
	}
	c.lastManual = now
	if c.display != nil {
		c.display.RequestRefresh()
	}
}

func (c *Controller) override(driftDeg float64) {
	c.overrides++
	mode := c.state.Mode
	if mode.Tracking() {
		c.log.Info("external rotation override", "mode", mode.String(), "drift_deg", driftDeg)
	}
	c.deactivate()
	c.rotationDir, c.tiltDir = 0, 0
	for _, o := range c.observers {
		o.ObserveOverride(mode)
	}
}

// UpdateFix replaces the latest fix.
func (c *Controller) UpdateFix(f Fix) {
	if !f.Time.IsZero() && f.Satellites > 0 {
		c.lastFixTime = c.now()
	}
	c.fix = f
}

// UpdateHeading feeds a heading reading. Magnetic readings are corrected
// with the cached declination. Only consumed in heading-up mode.
func (c *Controller) UpdateHeading(deg float64, magnetic bool) {
	if c.state.Mode != HeadingUp || !angle.Defined(deg) {
		return
	}
	coef := c.settings.FilterCoefficient
	smooth := c.state.Slew.Limiting
	if !magnetic {
		c.state.Heading.Value = filter.Angle(deg, c.state.Heading.Value, coef, smooth)
		return
	}
	decl, ok := c.currentDeclination()
	if !ok {
		return
	}
	c.state.Heading.Value = filter.Angle(deg, c.state.Heading.Value-decl, coef, smooth) + decl
}

// UpdateWind feeds a wind instrument reading. Only consumed in wind-up
// mode.
func (c *Controller) UpdateWind(r wind.Reading) {
	if c.state.Mode != WindUp {
		return
	}
	tw, ok := wind.TrueDirection(r, c.fix.SogKt, c.fix.CogDeg)
	if !ok {
		return
	}
	coef := c.settings.FilterCoefficient
	c.state.TrueWind.Value = filter.Angle(tw, c.state.TrueWind.Value, coef, c.state.Slew.Limiting)
	c.state.TrueWindKt = filter.Scalar(wind.Speed(r, c.fix.SogKt), c.state.TrueWindKt, coef)
}

// HandleMessage processes an inter-module message. Malformed or unknown
// messages are ignored.
func (c *Controller) HandleMessage(msg bus.Message) {
	ev, err := bus.Decode(msg)
	if err != nil {
		if !errors.Is(err, bus.ErrUnknown) {
			c.log.Debug("message ignored", "id", msg.ID, "err", err)
		}
		return
	}
	switch e := ev.(type) {
	case bus.WaypointActivated:
		c.retarget(e.GUID)
	case bus.WaypointArrived:
		c.retarget(e.GUID)
	case bus.Variation:
		c.declination.Set(e.Decl, c.now())
	}
}

func (c *Controller) retarget(guid string) {
	c.state.Route.GUID = guid
	if c.state.Mode != RouteUp {
		return
	}
	c.log.Info("route target changed", "guid", guid)
	c.state.Reset()
	c.schedule(slew.StartDelay)
}

// Fire runs one tick. It is the scheduler's callback.
func (c *Controller) Fire() {
	cur := angle.RadToDeg(c.vp.Rotation)
	res := Tick(c.state, Env{
		Fix:        c.fix,
		Settings:   c.settings,
		Waypoints:  c.waypoints,
		Bearing:    c.bearing,
		CurrentDeg: cur,
	})
	c.state = res.State
	if !res.Reschedule {
		return
	}
	c.ticks++
	if res.Command != nil {
		c.setRotation(res.Command.RotationRad)
	}
	c.schedule(res.Next)

	r := Report{
		At:          c.now(),
		Mode:        c.state.Mode,
		TargetDeg:   res.TargetDeg,
		RotationDeg: angle.RadToDeg(c.vp.Rotation),
		Applied:     res.Command != nil,
		Clamped:     res.Step.Clamped,
		Suppressed:  res.Step.Suppressed,
		Next:        res.Next,
	}
	for _, o := range c.observers {
		o.ObserveTick(r)
	}
}

func (c *Controller) currentDeclination() (float64, bool) {
	deg, request := c.declination.Get(c.now())
	if request && c.pub != nil {
		msg, err := bus.Encode(bus.VariationRequest{})
		if err == nil {
			c.pub.Publish(msg)
		}
	}
	return deg, angle.Defined(deg)
}

func (c *Controller) deactivate() {
	c.state.Mode = None
	c.setActive(None)
	if c.sched != nil {
		c.sched.Stop()
	}
}

func (c *Controller) schedule(d time.Duration) {
	if c.sched != nil {
		c.sched.Schedule(d)
	}
}

func (c *Controller) showTools() {
	if c.display != nil {
		c.display.SetVisibleTools(c.settings.VisibleTools())
	}
}

func (c *Controller) setActive(m Mode) {
	if c.active == m {
		return
	}
	c.active = m
	if c.display != nil {
		c.display.SetActiveTool(m)
	}
}

// setRotation records rad as the expected viewport rotation and sends it.
func (c *Controller) setRotation(rad float64) {
	rad = angle.DegToRad(angle.Canonical(angle.RadToDeg(rad)))
	if !angle.Defined(rad) {
		return
	}
	c.vp.Rotation = rad
	if c.display != nil {
		c.display.SetRotation(rad)
	}
}

func (c *Controller) setTilt(rad float64) {
	if !angle.Defined(rad) {
		return
	}
	c.vp.Tilt = rad
	if c.display != nil {
		c.display.SetTilt(rad)
	}
}

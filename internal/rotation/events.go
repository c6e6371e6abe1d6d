package rotation

import (
	"fmt"
	"strings"

	"rotationctrl/internal/bus"
	"rotationctrl/internal/wind"
)

// Event is one external notification handled by the Loop. The types in this
// file are the only implementations.
type Event interface {
	apply(c *Controller)
}

type FixUpdate struct {
	Fix Fix
}

type HeadingUpdate struct {
	Deg      float64
	Magnetic bool
}

type WindUpdate struct {
	Reading wind.Reading
}

// ViewportUpdate reports the viewport as currently displayed. Precision is
// the modifier key that slows manual rotate and tilt.
type ViewportUpdate struct {
	Viewport  Viewport
	Precision bool
}

// ToolAction is what the operator did with a toolbar button.
type ToolAction int

const (
	Click ToolAction = iota
	Press
	Release
)

func (a ToolAction) String() string {
	switch a {
	case Click:
		return "click"
	case Press:
		return "press"
	case Release:
		return "release"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func ParseToolAction(s string) (ToolAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "click":
		return Click, nil
	case "press", "down":
		return Press, nil
	case "release", "up":
		return Release, nil
	}
	return Click, fmt.Errorf("unknown action %q", s)
}

type ToolEvent struct {
	Tool   Mode
	Action ToolAction
}

type MessageReceived struct {
	Message bus.Message
}

type SettingsChanged struct {
	Settings Settings
	Warnings []string
}

// ResetRequested returns the controller to its initial state.
type ResetRequested struct{}

// tickFired is posted by the loop's own timer.
type tickFired struct{}

func (e FixUpdate) apply(c *Controller)       { c.UpdateFix(e.Fix) }
func (e HeadingUpdate) apply(c *Controller)   { c.UpdateHeading(e.Deg, e.Magnetic) }
func (e WindUpdate) apply(c *Controller)      { c.UpdateWind(e.Reading) }
func (e ViewportUpdate) apply(c *Controller)  { c.ViewportChanged(e.Viewport, e.Precision) }
func (e MessageReceived) apply(c *Controller) { c.HandleMessage(e.Message) }
func (e SettingsChanged) apply(c *Controller) { c.ApplySettings(e.Settings, e.Warnings) }
func (ResetRequested) apply(c *Controller)    { c.Reset() }
func (tickFired) apply(c *Controller)         { c.Fire() }

func (e ToolEvent) apply(c *Controller) {
	switch e.Action {
	case Press:
		c.PressTool(e.Tool)
	case Release:
		c.ReleaseTool(e.Tool)
	default:
		c.ClickTool(e.Tool)
	}
}

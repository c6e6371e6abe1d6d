// Package display turns controller output into commands for remote chart
// views and fans it out to several of them.
package display

import (
	"rotationctrl/internal/angle"
	"rotationctrl/internal/rotation"
)

const (
	TypeSetRotation = "set_rotation"
	TypeSetTilt     = "set_tilt"
	TypeTool        = "tool"
	TypeTools       = "tools"
	TypeRefresh     = "refresh"
	TypeNotice      = "notice"
)

// Command is one instruction for a chart view, as sent on the wire.
type Command struct {
	Type    string   `json:"type"`
	Radians *float64 `json:"radians,omitempty"`
	Degrees *float64 `json:"degrees,omitempty"`
	// Tool is the active tool name; "none" clears every indicator.
	Tool    string `json:"tool,omitempty"`
	Message string `json:"message,omitempty"`
	// Tools lists the tools to show, in toolbar order.
	Tools []string `json:"tools,omitempty"`
}

// Sender delivers commands. Implementations must not block the caller for
// long: they run on the controller goroutine.
type Sender interface {
	Send(c Command)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(c Command)

func (f SenderFunc) Send(c Command) { f(c) }

// Remote implements rotation.Display on top of a Sender.
type Remote struct {
	S Sender
}

func angleCommand(typ string, rad float64) Command {
	deg := angle.RadToDeg(rad)
	return Command{Type: typ, Radians: &rad, Degrees: &deg}
}

func (r Remote) SetRotation(rad float64) { r.S.Send(angleCommand(TypeSetRotation, rad)) }
func (r Remote) SetTilt(rad float64)     { r.S.Send(angleCommand(TypeSetTilt, rad)) }
func (r Remote) RequestRefresh()         { r.S.Send(Command{Type: TypeRefresh}) }
func (r Remote) Notice(msg string)       { r.S.Send(Command{Type: TypeNotice, Message: msg}) }

func (r Remote) SetActiveTool(m rotation.Mode) {
	r.S.Send(Command{Type: TypeTool, Tool: m.String()})
}

func (r Remote) SetVisibleTools(tools []rotation.Mode) {
	names := make([]string, len(tools))
	for i, m := range tools {
		names[i] = m.String()
	}
	r.S.Send(Command{Type: TypeTools, Tools: names})
}

// Multi forwards every call to each display in order.
type Multi []rotation.Display

func (m Multi) SetRotation(rad float64) {
	for _, d := range m {
		d.SetRotation(rad)
	}
}

func (m Multi) SetTilt(rad float64) {
	for _, d := range m {
		d.SetTilt(rad)
	}
}

func (m Multi) SetActiveTool(mode rotation.Mode) {
	for _, d := range m {
		d.SetActiveTool(mode)
	}
}

func (m Multi) SetVisibleTools(tools []rotation.Mode) {
	for _, d := range m {
		d.SetVisibleTools(tools)
	}
}

func (m Multi) RequestRefresh() {
	for _, d := range m {
		d.RequestRefresh()
	}
}

func (m Multi) Notice(msg string) {
	for _, d := range m {
		d.Notice(msg)
	}
}

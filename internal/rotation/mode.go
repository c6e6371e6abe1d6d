package rotation

import (
	"fmt"
	"strings"
)

// Mode identifies a rotation tool. Tracking modes recompute the rotation on
// every tick; the others act once or while held.
type Mode int

const (
	None Mode = iota
	ManualRotateCCW
	ManualRotateCW
	ManualTiltUp
	ManualTiltDown
	NorthUp
	SouthUp
	CourseUp
	HeadingUp
	RouteUp
	WindUp
)

// Tools lists every selectable tool in toolbar order.
var Tools = []Mode{
	ManualRotateCCW, ManualRotateCW, ManualTiltUp, ManualTiltDown,
	NorthUp, SouthUp, CourseUp, HeadingUp, RouteUp, WindUp,
}

var modeNames = map[Mode]string{
	None:            "none",
	ManualRotateCCW: "rotate_ccw",
	ManualRotateCW:  "rotate_cw",
	ManualTiltUp:    "tilt_up",
	ManualTiltDown:  "tilt_down",
	NorthUp:         "north_up",
	SouthUp:         "south_up",
	CourseUp:        "course_up",
	HeadingUp:       "heading_up",
	RouteUp:         "route_up",
	WindUp:          "wind_up",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts the names produced by String, case-insensitively, with
// '-' allowed in place of '_'.
func ParseMode(s string) (Mode, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for m, name := range modeNames {
		if name == key {
			return m, nil
		}
	}
	return None, fmt.Errorf("unknown tool %q", s)
}

// Tracking reports whether m continuously follows a sensor bearing.
func (m Mode) Tracking() bool {
	switch m {
	case CourseUp, HeadingUp, RouteUp, WindUp:
		return true
	}
	return false
}

// Manual reports whether m is a press-and-hold rotate or tilt tool.
func (m Mode) Manual() bool {
	switch m {
	case ManualRotateCCW, ManualRotateCW, ManualTiltUp, ManualTiltDown:
		return true
	}
	return false
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Message IDs understood by the rotation controller.
const (
	WaypointActivatedID = "OCPN_WPT_ACTIVATED"
	WaypointArrivedID   = "OCPN_WPT_ARRIVED"
	VariationID         = "WMM_VARIATION_BOAT"
	VariationRequestID  = "WMM_VARIATION_BOAT_REQUEST"
)

var (
	// ErrUnknown is returned for message IDs with no decoder.
	ErrUnknown = errors.New("bus: unknown message")
	// ErrMalformed is returned when a known message lacks required fields.
	ErrMalformed = errors.New("bus: malformed message")
)

// Event is a decoded message. The concrete types below are the only
// implementations.
type Event interface {
	event()
}

// WaypointActivated reports a new active waypoint.
type WaypointActivated struct {
	GUID string
}

// WaypointArrived reports arrival at a waypoint; GUID names the next target.
type WaypointArrived struct {
	GUID string
}

// Variation carries the magnetic declination at the vessel, in degrees.
type Variation struct {
	Decl float64
}

// VariationRequest asks a provider to broadcast Variation.
type VariationRequest struct{}

func (WaypointActivated) event() {}
func (WaypointArrived) event()   {}
func (Variation) event()         {}
func (VariationRequest) event()  {}

// Decode validates msg and returns its typed form. Unknown extra fields are
// ignored.
func Decode(msg Message) (Event, error) {
	switch msg.ID {
	case WaypointActivatedID:
		guid, err := decodeGUID(msg.Body)
		if err != nil {
			return nil, err
		}
		return WaypointActivated{GUID: guid}, nil
	case WaypointArrivedID:
		guid, err := decodeGUID(msg.Body)
		if err != nil {
			return nil, err
		}
		return WaypointArrived{GUID: guid}, nil
	case VariationID:
		var v struct {
			Decl json.RawMessage `json:"Decl"`
		}
		if err := json.Unmarshal([]byte(msg.Body), &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, msg.ID, err)
		}
		d, ok := parseNumber(v.Decl)
		if !ok {
			return nil, fmt.Errorf("%w: %s: Decl missing or not numeric", ErrMalformed, msg.ID)
		}
		return Variation{Decl: d}, nil
	case VariationRequestID:
		return VariationRequest{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknown, msg.ID)
	}
}

// Encode builds the wire form of ev.
func Encode(ev Event) (Message, error) {
	switch e := ev.(type) {
	case WaypointActivated:
		return marshal(WaypointActivatedID, map[string]any{"GUID": e.GUID})
	case WaypointArrived:
		return marshal(WaypointArrivedID, map[string]any{"GUID": e.GUID})
	case Variation:
		return marshal(VariationID, map[string]any{"Decl": strconv.FormatFloat(e.Decl, 'f', -1, 64)})
	case VariationRequest:
		return Message{ID: VariationRequestID, Body: "{}"}, nil
	default:
		return Message{}, fmt.Errorf("bus: cannot encode %T", ev)
	}
}

func marshal(id string, v any) (Message, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{ID: id, Body: string(b)}, nil
}

func decodeGUID(body string) (string, error) {
	var v struct {
		GUID *string `json:"GUID"`
	}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if v.GUID == nil || strings.TrimSpace(*v.GUID) == "" {
		return "", fmt.Errorf("%w: GUID missing", ErrMalformed)
	}
	return strings.TrimSpace(*v.GUID), nil
}

// parseNumber accepts a JSON number or a string holding one. NaN and
// infinities are rejected.
func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

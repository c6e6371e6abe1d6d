package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"rotationctrl/internal/bus"
	"rotationctrl/internal/display"
	"rotationctrl/internal/rotation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

// inbound is a message from a chart view:
//
//	{"type":"viewport","rotation":0.1,"tilt":0,"precision":false}
//	{"type":"tool","tool":"course_up","action":"click"}
//	{"type":"message","id":"OCPN_WPT_ACTIVATED","body":"{...}"}
type inbound struct {
	Type      string   `json:"type"`
	Rotation  *float64 `json:"rotation,omitempty"`
	Tilt      *float64 `json:"tilt,omitempty"`
	Precision bool     `json:"precision,omitempty"`
	Tool      string   `json:"tool,omitempty"`
	Action    string   `json:"action,omitempty"`
	ID        string   `json:"id,omitempty"`
	Body      string   `json:"body,omitempty"`
}

func (s *server) handleInbound(ctx context.Context, msg inbound) error {
	switch msg.Type {
	case "viewport":
		if s.Events == nil {
			return nil
		}
		ev, err := viewportRequest{Rotation: msg.Rotation, Tilt: msg.Tilt, Precision: msg.Precision}.event()
		if err != nil {
			return err
		}
		return s.Events.Post(ctx, ev)
	case "tool":
		if s.Events == nil {
			return nil
		}
		tool, err := rotation.ParseMode(msg.Tool)
		if err != nil {
			return err
		}
		action, err := rotation.ParseToolAction(msg.Action)
		if err != nil {
			return err
		}
		return s.Events.Post(ctx, rotation.ToolEvent{Tool: tool, Action: action})
	case "message":
		if s.Bus == nil {
			return nil
		}
		s.Bus.Publish(bus.Message{ID: msg.ID, Body: msg.Body})
		return nil
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// handleWS streams display commands to the view and feeds its messages to
// the controller. The first frames replay the current rotation, tilt and
// tool.
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id, ch := s.Hub.Subscribe(32)
	defer s.Hub.Unsubscribe(id)
	s.log.Info("chart view connected", "remote", r.RemoteAddr, "id", id)

	errs := make(chan error, 1)
	go func() {
		defer cancel()
		for {
			var msg inbound
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if err := s.handleInbound(ctx, msg); err != nil {
				s.log.Debug("websocket message rejected", "type", msg.Type, "err", err)
				select {
				case errs <- err:
				default:
				}
			}
		}
	}()

	for {
		var c display.Command
		select {
		case <-ctx.Done():
			s.log.Info("chart view disconnected", "remote", r.RemoteAddr, "id", id)
			return
		case err := <-errs:
			c = display.Command{Type: "error", Message: err.Error()}
		case cmd, ok := <-ch:
			if !ok {
				return
			}
			c = cmd
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(c); err != nil {
			return
		}
	}
}

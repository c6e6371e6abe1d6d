// Package buttons maps hardware push buttons on GPIO lines to toolbar
// actions.
package buttons

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"rotationctrl/internal/rotation"
)

type Config struct {
	// Chip is a gpiochip name or path, e.g. "gpiochip0".
	Chip      string
	Lines     map[rotation.Mode]int
	ActiveLow bool
	Debounce  time.Duration
}

// Edge is one debounced button transition.
type Edge struct {
	Tool    rotation.Mode
	Pressed bool
}

// Sink receives the toolbar action for each edge.
type Sink func(ev rotation.ToolEvent)

// openLinesFn requests the input lines and hands every edge to push until
// the returned closer is closed.
var openLinesFn = openLines

// edgeQueue carries edges from the line watchers to Run. A press that finds
// the queue full is dropped. A release waits for room until the service
// stops, so a held manual tool is always let go.
type edgeQueue struct {
	ch   chan Edge
	stop chan struct{}
}

func newEdgeQueue(size int) *edgeQueue {
	return &edgeQueue{ch: make(chan Edge, size), stop: make(chan struct{})}
}

func (q *edgeQueue) push(e Edge) bool {
	if e.Pressed {
		select {
		case q.ch <- e:
			return true
		default:
			return false
		}
	}
	select {
	case q.ch <- e:
		return true
	case <-q.stop:
		return false
	}
}

// ToolEvent converts an edge to the matching toolbar action. Manual tools
// act while held; every other tool acts on press only.
func ToolEvent(e Edge) (rotation.ToolEvent, bool) {
	if e.Tool.Manual() {
		if e.Pressed {
			return rotation.ToolEvent{Tool: e.Tool, Action: rotation.Press}, true
		}
		return rotation.ToolEvent{Tool: e.Tool, Action: rotation.Release}, true
	}
	if !e.Pressed || e.Tool == rotation.None {
		return rotation.ToolEvent{}, false
	}
	return rotation.ToolEvent{Tool: e.Tool, Action: rotation.Click}, true
}

type Service struct {
	cfg  Config
	sink Sink
	log  *slog.Logger
}

func New(cfg Config, sink Sink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, sink: sink, log: logger.With("component", "buttons")}
}

// Run watches the configured lines until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if len(s.cfg.Lines) == 0 {
		return fmt.Errorf("buttons: no lines configured")
	}
	q := newEdgeQueue(16)
	closer, err := openLinesFn(s.cfg, func(e Edge) {
		if !q.push(e) {
			s.log.Warn("button press dropped", "tool", e.Tool.String())
		}
	})
	if err != nil {
		return fmt.Errorf("buttons: %w", err)
	}
	defer closer.Close()
	// Unblock pending releases before the lines close.
	defer close(q.stop)

	tools := make([]string, 0, len(s.cfg.Lines))
	for m, off := range s.cfg.Lines {
		tools = append(tools, fmt.Sprintf("%s=%d", m, off))
	}
	sort.Strings(tools)
	s.log.Info("buttons enabled", "chip", s.cfg.Chip, "lines", tools)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-q.ch:
			ev, ok := ToolEvent(e)
			if !ok {
				continue
			}
			s.log.Debug("button", "tool", e.Tool.String(), "pressed", e.Pressed)
			if s.sink != nil {
				s.sink(ev)
			}
		}
	}
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

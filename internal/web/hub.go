package web

import (
	"sync"

	"rotationctrl/internal/display"
)

// Hub fans display commands out to connected chart views. It keeps the
// latest tool list, active tool, rotation and tilt so a view that connects
// late starts in sync.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan display.Command
	nextID int
	last   map[string]display.Command
}

var replayOrder = []string{display.TypeTools, display.TypeTool, display.TypeSetRotation, display.TypeSetTilt}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[int]chan display.Command),
		last: make(map[string]display.Command),
	}
}

// Display returns a rotation.Display that sends through h.
func (h *Hub) Display() display.Remote {
	return display.Remote{S: h}
}

func (h *Hub) Subscribe(buffer int) (int, <-chan display.Command) {
	if buffer < len(replayOrder) {
		buffer = 16
	}
	ch := make(chan display.Command, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	for _, typ := range replayOrder {
		if c, ok := h.last[typ]; ok {
			ch <- c
		}
	}
	h.mu.Unlock()
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Send delivers c to every subscriber without blocking. A subscriber whose
// buffer is full misses c.
func (h *Hub) Send(c display.Command) {
	h.mu.Lock()
	switch c.Type {
	case display.TypeSetRotation, display.TypeSetTilt, display.TypeTool, display.TypeTools:
		h.last[c.Type] = c
	}
	for _, ch := range h.subs {
		select {
		case ch <- c:
		default:
		}
	}
	h.mu.Unlock()
}

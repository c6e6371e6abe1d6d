// Package bus carries named inter-module messages with JSON bodies.
//
// Subscribers get buffered channels; a slow subscriber drops messages rather
// than blocking the publisher.
package bus

import (
	"sync"
)

// Message is one named message. Body is a JSON document.
type Message struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Message
	nextID int
}

func New() *Bus {
	return &Bus{subs: make(map[int]chan Message)}
}

func (b *Bus) Subscribe(buffer int) (int, <-chan Message) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Message, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers msg to every subscriber that has room for it and returns
// how many received it.
func (b *Bus) Publish(msg Message) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, ch := range b.subs {
		select {
		case ch <- msg:
			n++
		default:
		}
	}
	return n
}

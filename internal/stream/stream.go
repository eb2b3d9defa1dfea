// Package stream fans booking activity out to connected back-office
// clients.
package stream

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
)

// Event is one entry of the activity feed. It carries no client contact
// details.
type Event struct {
	Type        string    `json:"type"`
	Reference   string    `json:"reference"`
	Status      string    `json:"status"`
	ServiceName string    `json:"service_name,omitempty"`
	Urgency     string    `json:"urgency,omitempty"`
	Emirate     string    `json:"emirate,omitempty"`
	Total       string    `json:"total,omitempty"`
	At          time.Time `json:"at"`
}

// Hub fans events out to all active subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	buffer int
}

func New() *Hub {
	return &Hub{subs: make(map[int]chan Event), buffer: 16}
}

// Subscribe registers a subscriber. The channel is closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()
	return ch
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

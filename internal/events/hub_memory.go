package events

import (
	"context"
	"sync"
	"time"
)

const subscriberBuffer = 64

// InMemoryHub is the single-node hub.
type InMemoryHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	now    func() time.Time
}

func NewInMemoryHub() *InMemoryHub {
	return &InMemoryHub{
		subs: make(map[int]chan Event),
		now:  time.Now,
	}
}

func (h *InMemoryHub) Publish(_ context.Context, name string, payload any) {
	event := Event{Name: name, Payload: payload, At: h.now()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up; drop rather than block the pipeline.
		}
	}
}

func (h *InMemoryHub) Subscribe(_ context.Context) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

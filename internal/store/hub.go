package store

import (
	"sync"

	"github.com/jobchat/internal/logger"
)

const subscriberBufSize = 64

// Hub fans cache events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full is dropped and its channel closed, the
// same backpressure rule the socket layer applies to slow clients.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBufSize)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() { h.drop(ch) }
	return ch, cancel
}

func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	var full []chan Event
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			full = append(full, ch)
		}
	}
	for _, ch := range full {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
	if len(full) > 0 {
		logger.Errorf("store: dropped %d slow subscriber(s)", len(full))
	}
}

func (h *Hub) drop(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = make(map[chan Event]struct{})
}

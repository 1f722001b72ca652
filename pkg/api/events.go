package api

import (
	"sync"
	"time"
)

// QueryEvent is published to the event feed after each search completes. It
// carries aggregate shape only, never criterion values or record contents.
type QueryEvent struct {
	QueryID   string    `json:"query_id"`
	Criteria  int       `json:"criteria"`
	Records   int       `json:"records"`
	Partial   bool      `json:"partial"`
	TookMS    int64     `json:"took_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// eventEnvelope wraps hub payloads so new event kinds can be added without
// changing the channel element type.
type eventEnvelope struct {
	Type  string     `json:"type"`
	Query QueryEvent `json:"query,omitempty"`
}

// EventHub fans query events out to websocket listeners. Delivery is
// best-effort: a listener whose buffer is full misses that event rather than
// backpressuring the search path.
type EventHub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan eventEnvelope
	nextID    uint64
	bufSize   int
}

// NewEventHub constructs a hub with the given per-listener buffer size,
// defaulting to 32.
func NewEventHub(bufSize int) *EventHub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &EventHub{
		listeners: make(map[uint64]chan eventEnvelope),
		bufSize:   bufSize,
	}
}

// Register adds a listener and returns its id and receive channel.
func (h *EventHub) Register() (uint64, <-chan eventEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan eventEnvelope, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes a listener and closes its channel. Unknown ids are
// ignored.
func (h *EventHub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Publish delivers an event to every listener that has buffer room.
func (h *EventHub) Publish(event QueryEvent) {
	envelope := eventEnvelope{Type: "query", Query: event}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- envelope:
		default:
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (h *EventHub) ListenerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

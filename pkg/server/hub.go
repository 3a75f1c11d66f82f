package server

import "sync"

// StateEvent is the JSON snapshot fanned out to web listeners.
type StateEvent struct {
	Query    string   `json:"query"`
	Items    []string `json:"items"`
	Count    int      `json:"count"`
	HasMore  bool     `json:"has_more"`
	Loading  bool     `json:"loading"`
	Error    string   `json:"error,omitempty"`
	Selected int      `json:"selected"`
	Status   string   `json:"status"`
}

// Hub is an in-memory fan-out dispatcher. Each registered listener receives
// events on its own buffered channel. If a listener's buffer is full when an
// event arrives, that event is dropped for that listener only, so a slow
// websocket never backpressures the controller's notify path.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan StateEvent
	nextID    uint64
	bufSize   int
}

// NewHub constructs a hub with a per-listener buffer size.
// If bufSize <= 0, a default of 8 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 8
	}
	return &Hub{
		listeners: make(map[uint64]chan StateEvent),
		bufSize:   bufSize,
	}
}

// Register adds a listener and returns its id and receive channel.
// Callers must Unregister(id) to release resources.
func (h *Hub) Register() (uint64, <-chan StateEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan StateEvent, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener with the given id and closes its channel.
// It is safe to call multiple times; unknown ids are ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers an event to all registered listeners, best effort.
func (h *Hub) Broadcast(event StateEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- event:
		default:
			// Drop for slow listener.
		}
	}
}

// Size returns the current number of active listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

package game

import (
	"encoding/json"
	"sync"
)

// Hub fans views out to local watchers (SSE and WebSocket connections).
type Hub struct {
	Mu       sync.Mutex
	Watchers map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{Watchers: make(map[chan []byte]struct{})}
}

// AddWatcher adds a new watcher channel
func (h *Hub) AddWatcher(ch chan []byte) {
	h.Mu.Lock()
	h.Watchers[ch] = struct{}{}
	h.Mu.Unlock()
}

// RemoveWatcher removes a watcher channel
func (h *Hub) RemoveWatcher(ch chan []byte) {
	h.Mu.Lock()
	delete(h.Watchers, ch)
	h.Mu.Unlock()
}

// Len returns the number of watchers.
func (h *Hub) Len() int {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return len(h.Watchers)
}

// Broadcast sends v to all watchers. Slow watchers miss the update rather
// than block the sender.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.Mu.Lock()
	for ch := range h.Watchers {
		select {
		case ch <- data:
		default:
		}
	}
	h.Mu.Unlock()
}

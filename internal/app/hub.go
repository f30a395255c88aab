package app

import (
	"log/slog"
	"sync"

	"github.com/dshills/langgraph-agents/graph/ui"
)

// Hub fans UI events out to live subscribers of a thread. Events pushed
// while nobody listens are not kept; the checkpoint holds the full log.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan ui.Event]struct{}
	logger      *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{subscribers: make(map[string]map[chan ui.Event]struct{}), logger: logger}
}

// Subscribe returns a channel of the thread's UI events and a function that
// ends the subscription and closes the channel.
func (h *Hub) Subscribe(threadID string) (<-chan ui.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ui.Event, 32)
	if _, ok := h.subscribers[threadID]; !ok {
		h.subscribers[threadID] = make(map[chan ui.Event]struct{})
	}
	h.subscribers[threadID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subs := h.subscribers[threadID]
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(h.subscribers, threadID)
			}
		})
	}
}

// Publish delivers ev to every subscriber of threadID. A subscriber whose
// buffer is full misses the event.
func (h *Hub) Publish(threadID string, ev ui.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers[threadID] {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("ui subscriber too slow, dropping event", "thread_id", threadID, "id", ev.ID)
		}
	}
}

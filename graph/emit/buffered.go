package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory, grouped
// by thread id.
//
// Use cases:
//   - Testing and validation
//   - Inspecting a run's history from the CLI
//
// BufferedEmitter keeps every event it receives; call Clear to release a
// thread's history.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	engine, _ := graph.New(st, graph.WithEmitter(emitter))
//
//	// ... run ...
//
//	all := emitter.GetHistory("thread-1")
//	failures := emitter.GetHistoryWithFilter("thread-1", emit.HistoryFilter{Msg: emit.MsgNodeError})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // threadID -> events
}

// HistoryFilter specifies criteria for filtering a thread's history.
//
// All fields are optional; set fields are combined with AND logic.
type HistoryFilter struct {
	NodeID  string // Filter by node ID (empty = no filter)
	Graph   string // Filter by graph name (empty = no filter)
	Msg     string // Filter by message (empty = no filter)
	MinStep *int   // Minimum step number (nil = no filter)
	MaxStep *int   // Maximum step number (nil = no filter)
}

// NewBufferedEmitter creates a new BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.ThreadID] = append(b.events[event.ThreadID], event)
}

// GetHistory returns a copy of all events for a thread in emission order.
func (b *BufferedEmitter) GetHistory(threadID string) []Event {
	return b.GetHistoryWithFilter(threadID, HistoryFilter{})
}

// GetHistoryWithFilter returns the thread's events that match filter, in
// emission order. It never returns nil.
func (b *BufferedEmitter) GetHistoryWithFilter(threadID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[threadID] {
		if filter.matches(event) {
			result = append(result, event)
		}
	}
	return result
}

func (f HistoryFilter) matches(event Event) bool {
	if f.NodeID != "" && event.NodeID != f.NodeID {
		return false
	}
	if f.Graph != "" && event.Graph != f.Graph {
		return false
	}
	if f.Msg != "" && event.Msg != f.Msg {
		return false
	}
	if f.MinStep != nil && event.Step < *f.MinStep {
		return false
	}
	if f.MaxStep != nil && event.Step > *f.MaxStep {
		return false
	}
	return true
}

// Clear removes stored events for threadID, or for every thread when
// threadID is empty.
func (b *BufferedEmitter) Clear(threadID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if threadID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, threadID)
}

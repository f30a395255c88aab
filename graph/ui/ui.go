// Package ui implements the side channel nodes use to publish incremental,
// addressable UI updates for a presentation layer.
//
// Every run owns one Stream. Nodes push events through the context:
//
//	ui.Push(ctx, ui.Event{Name: "stockbroker", Props: map[string]any{"price": 101.2}})
//
// The stream is an append-only log. An event whose ID was seen before is a
// reconciling update of that component, not a new one; Reconcile folds a log
// into the latest state per ID for consumers that only need the final view.
package ui

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MessageIDKey is the metadata key that correlates an event to a chat message.
const MessageIDKey = "message_id"

// Event is one UI update. The JSON shape is the wire format consumers read.
type Event struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Props    map[string]any `json:"props"`
	Metadata map[string]any `json:"metadata"`
}

// ForMessage returns a copy of e correlated to the given message.
func (e Event) ForMessage(messageID string) Event {
	md := make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[MessageIDKey] = messageID
	e.Metadata = md
	return e
}

// MessageID returns the correlated message id, if any.
func (e Event) MessageID() string {
	id, _ := e.Metadata[MessageIDKey].(string)
	return id
}

// Listener observes events as they are pushed.
type Listener func(Event)

// Stream is a run's ordered UI log. Push is safe for concurrent use; pushes
// are serialized so the log order is the order in which Push calls acquired
// the stream.
type Stream struct {
	mu       sync.Mutex
	events   []Event
	listener Listener
}

// NewStream creates a stream that continues from prior events, for example
// those restored from a checkpoint. listener may be nil.
func NewStream(prior []Event, listener Listener) *Stream {
	return &Stream{events: slices.Clone(prior), listener: listener}
}

// Push assigns an id when absent, defaults Props and Metadata to empty maps,
// appends the event and returns the stored copy.
func (s *Stream) Push(ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Props == nil {
		ev.Props = map[string]any{}
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}
	if s == nil {
		return ev
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if s.listener != nil {
		s.listener(ev)
	}
	return ev
}

// Events returns a copy of the log in push order.
func (s *Stream) Events() []Event {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// Len returns the number of events pushed so far.
func (s *Stream) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Reconcile folds a log into one event per id. Each id keeps the position of
// its first appearance and the content of its latest one.
func Reconcile(events []Event) []Event {
	pos := make(map[string]int, len(events))
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if i, ok := pos[ev.ID]; ok {
			out[i] = ev
			continue
		}
		pos[ev.ID] = len(out)
		out = append(out, ev)
	}
	return out
}

type streamKey struct{}

// WithStream attaches s to ctx.
func WithStream(ctx context.Context, s *Stream) context.Context {
	return context.WithValue(ctx, streamKey{}, s)
}

// FromContext returns the stream attached to ctx, or nil. A nil *Stream is
// usable: Push normalizes and returns the event without recording it.
func FromContext(ctx context.Context) *Stream {
	s, _ := ctx.Value(streamKey{}).(*Stream)
	return s
}

// Push pushes ev onto the stream attached to ctx.
func Push(ctx context.Context, ev Event) Event {
	return FromContext(ctx).Push(ev)
}

package ui

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

func TestStream_Push(t *testing.T) {
	var seen []string
	s := NewStream(nil, func(ev Event) { seen = append(seen, ev.Name) })

	ev := s.Push(Event{Name: "stockbroker"})
	if ev.ID == "" {
		t.Error("Push did not assign an id")
	}
	if ev.Props == nil || ev.Metadata == nil {
		t.Errorf("Push did not default maps: %+v", ev)
	}

	kept := s.Push(Event{ID: "fixed", Name: "writer", Props: map[string]any{"content": "a"}})
	if kept.ID != "fixed" {
		t.Errorf("id = %s, want fixed", kept.ID)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if len(seen) != 2 || seen[1] != "writer" {
		t.Errorf("listener saw %v", seen)
	}
}

func TestStream_EventsIsCopy(t *testing.T) {
	s := NewStream([]Event{{ID: "a", Name: "prior"}}, nil)
	events := s.Events()
	events[0].Name = "mutated"
	if s.Events()[0].Name != "prior" {
		t.Error("Events exposed the internal log")
	}
}

func TestStream_Concurrent(t *testing.T) {
	s := NewStream(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Push(Event{Name: "card"})
		}()
	}
	wg.Wait()
	if s.Len() != 100 {
		t.Errorf("Len = %d, want 100", s.Len())
	}
	ids := map[string]bool{}
	for _, ev := range s.Events() {
		if ids[ev.ID] {
			t.Fatalf("duplicate id %s", ev.ID)
		}
		ids[ev.ID] = true
	}
}

func TestNilStream(t *testing.T) {
	var s *Stream
	ev := s.Push(Event{Name: "orphan"})
	if ev.ID == "" {
		t.Error("nil stream did not normalize the event")
	}
	if s.Len() != 0 || s.Events() != nil {
		t.Error("nil stream recorded an event")
	}
	if got := Push(context.Background(), Event{Name: "orphan"}); got.Name != "orphan" {
		t.Errorf("Push without stream = %+v", got)
	}
}

func TestContext(t *testing.T) {
	s := NewStream(nil, nil)
	ctx := WithStream(context.Background(), s)
	if FromContext(ctx) != s {
		t.Fatal("FromContext did not return the attached stream")
	}
	Push(ctx, Event{Name: "accommodations-list"})
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestReconcile(t *testing.T) {
	events := []Event{
		{ID: "w", Name: "writer", Props: map[string]any{"content": "Hel"}},
		{ID: "s", Name: "suggestions"},
		{ID: "w", Name: "writer", Props: map[string]any{"content": "Hello"}},
	}
	out := Reconcile(events)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].ID != "w" || out[0].Props["content"] != "Hello" {
		t.Errorf("first = %+v, want latest writer content at first position", out[0])
	}
	if out[1].ID != "s" {
		t.Errorf("second = %+v", out[1])
	}
}

func TestEvent_ForMessage(t *testing.T) {
	orig := Event{Name: "proposed-change", Metadata: map[string]any{"k": "v"}}
	ev := orig.ForMessage("msg-1")
	if ev.MessageID() != "msg-1" || ev.Metadata["k"] != "v" {
		t.Errorf("metadata = %v", ev.Metadata)
	}
	if orig.MessageID() != "" {
		t.Error("ForMessage modified the original metadata")
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"id", "name", "props", "metadata"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("wire form lacks %q: %s", key, raw)
		}
	}
}

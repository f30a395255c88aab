// Package emit carries observability events out of the engine.
package emit

// Emitter receives observability events from graph execution.
//
// Implementations should be:
//   - Non-blocking: Avoid slowing down the run
//   - Thread-safe: Nodes in one step run concurrently
//   - Resilient: Never panic and never fail the run
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	Emit(event Event)
}

// Multi fans every event out to each of the given emitters in order.
// Nil emitters are skipped.
func Multi(emitters ...Emitter) Emitter {
	out := make(multi, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

type multi []Emitter

func (m multi) Emit(event Event) {
	for _, e := range m {
		e.Emit(event)
	}
}

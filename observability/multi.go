package observability

import "context"

// MultiObserver delivers each event to every attached sink in order. A
// deployment that wants both log lines and a metrics bridge wires one
// MultiObserver into the registry instead of teaching the gateway about
// multiple observer fields.
//
// Delivery is synchronous on the request path. Sinks that do slow work
// should buffer internally rather than block a chat turn.
type MultiObserver struct {
	sinks []Observer
}

var _ Observer = (*MultiObserver)(nil)

// NewMultiObserver builds a MultiObserver over the given sinks. Nil entries
// are dropped, so callers can pass conditionally-constructed observers
// without guarding each one.
func NewMultiObserver(sinks ...Observer) *MultiObserver {
	kept := make([]Observer, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	return &MultiObserver{sinks: kept}
}

// OnEvent forwards the event to every sink.
func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, sink := range m.sinks {
		sink.OnEvent(ctx, event)
	}
}

package observability

import "context"

// NoOpObserver drops every event. It backs the "noop" registry entry and is
// the observer of choice in tests that do not assert on telemetry: chat
// turns, rate-limit rejections, and order lookups all emit through it at
// zero cost.
type NoOpObserver struct{}

var _ Observer = NoOpObserver{}

// OnEvent discards the event.
func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}

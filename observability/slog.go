package observability

import (
	"context"
	"log/slog"
)

// SlogObserver turns pipeline events into structured log records. The event
// type becomes the log message so that a line like "chat.rate_limited" is
// directly grep-able, the severity is translated through SlogLevel, and the
// emitting subsystem lands in a "source" attribute next to the event data.
//
// This is the observer a default deployment runs: cmd/gateway registers one
// over the process logger before the gateway resolves its configured
// observer name.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver over logger. A nil logger falls
// back to slog.Default.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{logger: logger}
}

// OnEvent writes one log record per event. Data keys become top-level
// attributes, so event payloads should keep keys slog-friendly (snake_case,
// scalar values) rather than nesting structures.
func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	attrs := make([]slog.Attr, 0, len(event.Data)+1)
	attrs = append(attrs, slog.String("source", event.Source))
	for key, value := range event.Data {
		attrs = append(attrs, slog.Any(key, value))
	}

	o.logger.LogAttrs(ctx, event.Level.SlogLevel(), string(event.Type), attrs...)
}

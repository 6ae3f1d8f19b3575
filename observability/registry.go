package observability

import (
	"fmt"
	"log/slog"
	"sync"
)

// The registry decouples observer selection from observer construction: the
// gateway config names an observer ("slog", "noop", or anything an embedder
// registered) and gateway.New resolves that name here at startup. Two
// entries ship built in: "noop" discards everything, "slog" logs through
// slog.Default. A process that configures its own logger re-registers
// "slog" before building the gateway, as cmd/gateway does.
var (
	mu      sync.RWMutex
	entries = map[string]Observer{
		"noop": NoOpObserver{},
		"slog": NewSlogObserver(slog.Default()),
	}
)

// GetObserver returns the observer registered under name.
func GetObserver(name string) (Observer, error) {
	mu.RLock()
	defer mu.RUnlock()

	observer, ok := entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return observer, nil
}

// RegisterObserver adds or replaces the observer registered under name.
// Registration must happen before the gateway resolves its configured
// observer; later replacements do not affect an already-built gateway.
func RegisterObserver(name string, observer Observer) {
	mu.Lock()
	defer mu.Unlock()

	entries[name] = observer
}

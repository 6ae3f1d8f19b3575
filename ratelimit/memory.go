package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	count   int64
	resetAt time.Time
}

// memoryCounter implements Counter with an in-process map. Expired entries
// are dropped lazily on the next increment of their key.
type memoryCounter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

// NewMemoryCounter creates an in-process Counter.
func NewMemoryCounter() Counter {
	return &memoryCounter{
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// Incr implements Counter.
func (c *memoryCounter) Incr(ctx context.Context, key string, span time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry := c.entries[key]
	if entry == nil || !now.Before(entry.resetAt) {
		entry = &windowEntry{resetAt: now.Add(span)}
		c.entries[key] = entry
	}

	entry.count++
	return entry.count, nil
}

// Close implements Counter.
func (c *memoryCounter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*windowEntry)
	return nil
}

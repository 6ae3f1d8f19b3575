// Package ratelimit implements fixed-window admission control. A Window
// counts requests per key within a fixed span; the Limiter composes the
// gateway's two windows — a short per-IP window and a longer per-conversation
// window with a higher ceiling — and admits a request only when both pass.
//
// Fixed windows accept the boundary-burst tradeoff (up to twice the ceiling
// across a window edge) in exchange for a single atomic increment per check.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	ipWindowSpan      = time.Minute
	sessionWindowSpan = time.Hour

	// DefaultCeiling is the per-IP requests-per-minute ceiling when none is
	// configured. The per-conversation ceiling is always twice the IP one.
	DefaultCeiling = 20
)

// Counter is an atomic per-key increment with a fixed expiry. The first
// increment of a key starts its window; the key expires span after that
// first increment regardless of later activity.
type Counter interface {
	Incr(ctx context.Context, key string, span time.Duration) (int64, error)
	Close() error
}

// Window is one fixed-window limit over a Counter. Keys are hashed before
// storage so raw IPs and conversation ids never land in the backend.
type Window struct {
	counter Counter
	prefix  string
	limit   int
	span    time.Duration
}

// NewWindow creates a fixed window admitting limit requests per span.
func NewWindow(counter Counter, prefix string, limit int, span time.Duration) *Window {
	return &Window{counter: counter, prefix: prefix, limit: limit, span: span}
}

// Allow reports whether the request for key fits the window. Counter failures
// admit the request: losing throttling briefly beats refusing all traffic.
func (w *Window) Allow(ctx context.Context, key string) bool {
	count, err := w.counter.Incr(ctx, w.prefix+hashKey(key), w.span)
	if err != nil {
		return true
	}
	return count <= int64(w.limit)
}

// Limiter is the gateway's admission check: a 60-second IP window at the
// configured ceiling and a one-hour conversation window at twice that.
type Limiter struct {
	ip      *Window
	session *Window
	counter Counter
}

// NewLimiter creates a Limiter over the given counter. ceiling <= 0 falls
// back to DefaultCeiling.
func NewLimiter(counter Counter, ceiling int) *Limiter {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Limiter{
		ip:      NewWindow(counter, "rate:ip:", ceiling, ipWindowSpan),
		session: NewWindow(counter, "rate:conv:", ceiling*2, sessionWindowSpan),
		counter: counter,
	}
}

// Admit checks both windows, IP first. Either window rejecting rejects the
// whole request; counters are never decremented on rejection.
func (l *Limiter) Admit(ctx context.Context, ipKey, sessionKey string) bool {
	if !l.ip.Allow(ctx, ipKey) {
		return false
	}
	if sessionKey != "" && !l.session.Allow(ctx, sessionKey) {
		return false
	}
	return true
}

// Close releases the underlying counter.
func (l *Limiter) Close() error {
	return l.counter.Close()
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

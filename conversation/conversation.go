// Package conversation manages rolling per-session chat history with
// token-budget-aware trimming and a verified-identity side channel. History is
// an ephemeral cache with a bounded TTL; durable storage of messages is the
// persist package's concern.
package conversation

import (
	"context"
	"time"

	"github.com/siteassist/gateway/core/protocol"
)

// Message is one turn in a conversation's rolling history. TokenCount is an
// estimate from the configured Estimator, not an exact tokenizer count.
type Message struct {
	Role       protocol.Role `json:"role"`
	Content    string        `json:"content"`
	TokenCount int           `json:"token_count"`
	Timestamp  time.Time     `json:"timestamp"`
}

// VerifiedIdentity is the session-scoped record set after a successful
// out-of-band order verification. It unlocks privileged context for that
// session only and lives outside the trimmed history.
type VerifiedIdentity struct {
	OrderID int64  `json:"order_id"`
	Email   string `json:"email"`
}

// Store is the session-scoped history store. Implementations must support
// concurrent append for the same conversation id; each conversation id is an
// independent key, so no cross-key coordination is required.
//
// Reads fail open: a conversation with no history, an expired TTL, or an
// unreachable backend all present as empty history. Append errors are
// reported so the caller can log them, but the chat turn must not fail
// because history could not persist.
type Store interface {
	// History returns the rolling history in insertion order, or an empty
	// slice if none exists.
	History(ctx context.Context, conversationID string) []Message

	// Append adds one message, applies the trim policy, and re-persists the
	// history with a refreshed TTL.
	Append(ctx context.Context, conversationID string, role protocol.Role, content string) error

	// AppendExchange atomically appends a user/assistant pair so concurrent
	// turns for one conversation can never interleave their halves.
	AppendExchange(ctx context.Context, conversationID, userContent, assistantContent string) error

	// Clear discards the history for a conversation.
	Clear(ctx context.Context, conversationID string) error

	// SetVerified records the verified identity with the store's TTL.
	SetVerified(ctx context.Context, conversationID string, identity VerifiedIdentity) error

	// Verified returns the verified identity, or nil if none exists.
	Verified(ctx context.Context, conversationID string) *VerifiedIdentity

	// IsVerified reports whether a verified identity exists.
	IsVerified(ctx context.Context, conversationID string) bool

	// Close releases any resources held by the store.
	Close() error
}

// FormatForProvider strips the internal fields from history, preserving
// order, yielding the normalized message list providers consume.
func FormatForProvider(history []Message) []protocol.Message {
	messages := make([]protocol.Message, len(history))
	for i, msg := range history {
		messages[i] = protocol.Message{Role: msg.Role, Content: msg.Content}
	}
	return messages
}

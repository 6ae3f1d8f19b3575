// Package persist records chat transcripts and captured leads in durable
// storage. Recording is best-effort: the gateway logs and swallows recorder
// failures so a storage outage never blocks a chat turn.
package persist

import (
	"context"
	"time"

	"github.com/siteassist/gateway/core/protocol"
)

// Lead is a visitor's contact details captured mid-conversation. At least one
// of Email or Phone is set.
type Lead struct {
	ConversationID string    `json:"conversation_id"`
	Name           string    `json:"name,omitempty"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Message        string    `json:"message,omitempty"`
	PageURL        string    `json:"page_url,omitempty"`
	Consent        bool      `json:"consent"`
	CapturedAt     time.Time `json:"captured_at"`
}

// Recorder persists chat messages and leads.
type Recorder interface {
	// SaveMessage records one message of a conversation.
	SaveMessage(ctx context.Context, conversationID string, role protocol.Role, content string, tokens int) error

	// SaveLead records a captured lead.
	SaveLead(ctx context.Context, lead Lead) error

	// Close releases any resources held by the recorder.
	Close() error
}

// NopRecorder discards everything. Used when transcript saving is disabled.
type NopRecorder struct{}

func (NopRecorder) SaveMessage(ctx context.Context, conversationID string, role protocol.Role, content string, tokens int) error {
	return nil
}

func (NopRecorder) SaveLead(ctx context.Context, lead Lead) error { return nil }

func (NopRecorder) Close() error { return nil }

var _ Recorder = NopRecorder{}

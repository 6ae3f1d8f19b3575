package persist

import (
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"

	"github.com/siteassist/gateway/core/protocol"
)

// SupabaseConfig holds Supabase connection parameters.
type SupabaseConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
}

// SupabaseRecorder persists transcripts and leads in hosted Postgres through
// the Supabase REST layer.
type SupabaseRecorder struct {
	client *supabase.Client
}

// NewSupabase creates a Recorder backed by a Supabase project.
func NewSupabase(cfg SupabaseConfig) (*SupabaseRecorder, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}

	return &SupabaseRecorder{client: client}, nil
}

type messageRow struct {
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Tokens         int    `json:"tokens"`
}

type leadRow struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Message        string `json:"message,omitempty"`
	PageURL        string `json:"page_url,omitempty"`
	Consent        bool   `json:"consent"`
}

// SaveMessage implements Recorder.
func (r *SupabaseRecorder) SaveMessage(ctx context.Context, conversationID string, role protocol.Role, content string, tokens int) error {
	row := messageRow{
		ConversationID: conversationID,
		Role:           string(role),
		Content:        content,
		Tokens:         tokens,
	}
	_, _, err := r.client.From("messages").Insert(row, false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// SaveLead implements Recorder.
func (r *SupabaseRecorder) SaveLead(ctx context.Context, lead Lead) error {
	row := leadRow{
		ConversationID: lead.ConversationID,
		Name:           lead.Name,
		Email:          lead.Email,
		Phone:          lead.Phone,
		Message:        lead.Message,
		PageURL:        lead.PageURL,
		Consent:        lead.Consent,
	}
	_, _, err := r.client.From("leads").Insert(row, false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// Close implements Recorder. The Supabase client holds no connection state.
func (r *SupabaseRecorder) Close() error { return nil }

var _ Recorder = (*SupabaseRecorder)(nil)

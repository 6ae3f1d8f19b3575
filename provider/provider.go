// Package provider implements the gateway's LLM backend clients. Every client
// consumes the normalized message list from core/protocol and returns a
// normalized response or a typed error; backend wire formats never leak past
// this package.
//
// Supported backends form a closed set of kinds. Adding a backend means
// adding a Kind constant and a case in New, not string matching elsewhere.
package provider

import (
	"context"
	"fmt"

	"github.com/siteassist/gateway/core/protocol"
)

// Kind identifies a supported LLM backend.
type Kind string

const (
	KindGroq      Kind = "groq"
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	// KindCompatible is any backend speaking the OpenAI chat-completions
	// format at a custom base URL.
	KindCompatible Kind = "compatible"
)

// Valid reports whether k names a supported backend.
func (k Kind) Valid() bool {
	switch k {
	case KindGroq, KindOpenAI, KindAnthropic, KindCompatible:
		return true
	}
	return false
}

// Client is the capability every backend exposes to the gateway.
// Implementations make exactly one HTTP round trip per Chat call under a
// bounded timeout and never retry.
type Client interface {
	// Chat sends the normalized message list and returns a normalized
	// response. The message list must be non-empty and model non-empty.
	Chat(ctx context.Context, messages []protocol.Message, model string) (*protocol.ChatResponse, error)

	// TestConnection sends a minimal fixed message. Used for admin-side
	// credential validation, not part of the hot path.
	TestConnection(ctx context.Context) (*protocol.ChatResponse, error)

	// Name returns the human-readable backend name.
	Name() string

	// SupportedModels maps model identifiers to display names.
	SupportedModels() map[string]string
}

// Embedder is implemented by backends that can produce embedding vectors.
// The knowledge retrieval source uses it to embed search queries.
type Embedder interface {
	Embed(ctx context.Context, input, model string) ([]float32, error)
}

// Config holds backend selection and connection parameters.
type Config struct {
	Kind   Kind   `json:"kind"`
	APIKey string `json:"api_key"`
	// BaseURL is required for KindCompatible and ignored otherwise.
	BaseURL string `json:"base_url,omitempty"`
	// Model is the default model for chat calls.
	Model string `json:"model,omitempty"`
}

// DefaultConfig returns a Config targeting Groq with its default model.
func DefaultConfig() Config {
	return Config{
		Kind:  KindGroq,
		Model: "llama-3.3-70b-versatile",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Kind != "" {
		c.Kind = source.Kind
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.Model != "" {
		c.Model = source.Model
	}
}

// New creates a Client for the configured backend kind.
func New(cfg *Config) (Client, error) {
	switch cfg.Kind {
	case KindGroq:
		return NewGroq(cfg.APIKey), nil
	case KindOpenAI:
		return NewOpenAI(cfg.APIKey), nil
	case KindAnthropic:
		return NewAnthropic(cfg.APIKey), nil
	case KindCompatible:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: kind %q requires a base URL", ErrUnknownKind, cfg.Kind)
		}
		return NewCompatible("Custom", cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

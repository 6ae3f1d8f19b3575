package gateway

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/siteassist/gateway/conversation"
	"github.com/siteassist/gateway/knowledge"
	"github.com/siteassist/gateway/knowledge/vectorstore"
	"github.com/siteassist/gateway/persist"
	"github.com/siteassist/gateway/provider"
	"github.com/siteassist/gateway/ratelimit"
)

// RetrievalConfig enables semantic retrieval of indexed site content as a
// context source. Retrieval is off unless a Qdrant URL is set; it requires an
// embeddings-capable provider.
type RetrievalConfig struct {
	Qdrant vectorstore.QdrantConfig `json:"qdrant"`

	// EmbedModel is the embeddings model used for queries.
	EmbedModel string `json:"embed_model,omitempty"`
}

// Config holds initialization parameters for all gateway subsystems.
// Each subsystem section delegates to that subsystem's config-driven
// constructor.
type Config struct {
	Provider     provider.Config     `json:"provider"`
	Conversation conversation.Config `json:"conversation"`
	RateLimit    ratelimit.Config    `json:"rate_limit"`
	Knowledge    knowledge.Config    `json:"knowledge"`
	Retrieval    RetrievalConfig     `json:"retrieval,omitempty"`
	Persist      persist.Config      `json:"persist"`

	// Disabled turns the chat surface off without tearing the process down.
	Disabled bool `json:"disabled,omitempty"`

	// AdminToken authorizes the connection-test endpoint. Empty disables it.
	AdminToken string `json:"admin_token,omitempty"`

	// Observer names a registered observer ("slog", "noop"). Defaults to slog.
	Observer string `json:"observer,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Provider:     provider.DefaultConfig(),
		Conversation: conversation.DefaultConfig(),
		RateLimit:    ratelimit.DefaultConfig(),
		Knowledge:    knowledge.DefaultConfig(),
		Persist:      persist.DefaultConfig(),
		Retrieval:    RetrievalConfig{EmbedModel: "text-embedding-3-small"},
		Observer:     "slog",
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Provider.Merge(&source.Provider)
	c.Conversation.Merge(&source.Conversation)
	c.RateLimit.Merge(&source.RateLimit)
	c.Knowledge.Merge(&source.Knowledge)
	c.Persist.Merge(&source.Persist)

	if source.Retrieval.Qdrant.URL != "" {
		c.Retrieval.Qdrant.URL = source.Retrieval.Qdrant.URL
	}
	if source.Retrieval.Qdrant.Collection != "" {
		c.Retrieval.Qdrant.Collection = source.Retrieval.Qdrant.Collection
	}
	if source.Retrieval.Qdrant.APIKey != "" {
		c.Retrieval.Qdrant.APIKey = source.Retrieval.Qdrant.APIKey
	}
	if source.Retrieval.EmbedModel != "" {
		c.Retrieval.EmbedModel = source.Retrieval.EmbedModel
	}

	if source.Disabled {
		c.Disabled = true
	}
	if source.AdminToken != "" {
		c.AdminToken = source.AdminToken
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

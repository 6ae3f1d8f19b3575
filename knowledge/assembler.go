// Package knowledge assembles the system prompt and retrieval context for a
// chat turn. Context is built from ordered blocks: site identity and
// operator-supplied knowledge always lead (cheapest and most authoritative),
// followed by any registered sources. Empty blocks are omitted; source
// failures drop the block rather than the turn.
package knowledge

import (
	"context"
	"log/slog"
	"strings"
)

// SiteInfo identifies the site the assistant serves.
type SiteInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
}

// Source supplies one pre-rendered context block. The query is the user's
// current message; sources that don't retrieve per-query ignore it.
type Source interface {
	Name() string
	Context(ctx context.Context, query string) (string, error)
}

// OrderSource looks up order details for a customer claiming an order. An
// empty result means no match or an email mismatch — verification failed,
// not an error. Implementations must not reveal which field was wrong.
type OrderSource interface {
	Lookup(ctx context.Context, orderID int64, email string) (string, error)
}

// Config holds the assembler's operator-supplied settings.
type Config struct {
	Site SiteInfo `json:"site"`
	// SystemPrompt overrides the built-in prompt. {site_name} is substituted.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// CustomKnowledge is free-text operator knowledge, always included.
	CustomKnowledge string `json:"custom_knowledge,omitempty"`
}

// DefaultConfig returns an empty assembler configuration.
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Site.Name != "" {
		c.Site.Name = source.Site.Name
	}
	if source.Site.Description != "" {
		c.Site.Description = source.Site.Description
	}
	if source.Site.URL != "" {
		c.Site.URL = source.Site.URL
	}
	if source.SystemPrompt != "" {
		c.SystemPrompt = source.SystemPrompt
	}
	if source.CustomKnowledge != "" {
		c.CustomKnowledge = source.CustomKnowledge
	}
}

// Assembler builds the system prompt and context blocks for each turn.
type Assembler struct {
	site            SiteInfo
	promptTemplate  string
	customKnowledge string
	sources         []Source
	orders          OrderSource
	logger          *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithSource appends a context source. Sources contribute blocks in
// registration order, after the site and custom-knowledge blocks.
func WithSource(src Source) Option {
	return func(a *Assembler) { a.sources = append(a.sources, src) }
}

// WithOrderSource sets the collaborator for verified order lookups.
func WithOrderSource(src OrderSource) Option {
	return func(a *Assembler) { a.orders = src }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

// New creates an Assembler from configuration.
func New(cfg *Config, opts ...Option) *Assembler {
	a := &Assembler{
		site:            cfg.Site,
		promptTemplate:  cfg.SystemPrompt,
		customKnowledge: cfg.CustomKnowledge,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build concatenates the context blocks for one turn, blank-line separated,
// omitting empty ones.
func (a *Assembler) Build(ctx context.Context, query string) string {
	blocks := []string{a.siteBlock()}

	if a.customKnowledge != "" {
		blocks = append(blocks, "## Additional Information\n"+a.customKnowledge)
	}

	for _, src := range a.sources {
		block, err := src.Context(ctx, query)
		if err != nil {
			a.logger.Warn("context source failed", "source", src.Name(), "error", err)
			continue
		}
		if block != "" {
			blocks = append(blocks, block)
		}
	}

	nonEmpty := blocks[:0]
	for _, b := range blocks {
		if b != "" {
			nonEmpty = append(nonEmpty, b)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

func (a *Assembler) siteBlock() string {
	if a.site.Name == "" && a.site.URL == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Website Information\n")
	b.WriteString("- Site Name: " + a.site.Name + "\n")
	if a.site.Description != "" {
		b.WriteString("- Description: " + a.site.Description + "\n")
	}
	b.WriteString("- URL: " + a.site.URL + "\n")
	return b.String()
}

// SystemPrompt returns the operator-configured prompt with {site_name}
// substituted, or the built-in default.
func (a *Assembler) SystemPrompt() string {
	if a.promptTemplate != "" {
		return strings.ReplaceAll(a.promptTemplate, "{site_name}", a.site.Name)
	}
	return defaultSystemPrompt(a.site)
}

// OrderContext returns the verified-order block for a customer, or empty if
// the order source reports no match. An empty result is "verification
// failed", never an error.
func (a *Assembler) OrderContext(ctx context.Context, orderID int64, email string) (string, error) {
	if a.orders == nil {
		return "", nil
	}
	return a.orders.Lookup(ctx, orderID, email)
}

// StaticSource is a Source over a fixed pre-rendered block, used for
// collaborator-supplied content like page summaries or FAQ text.
type StaticSource struct {
	name string
	text string
}

// NewStaticSource creates a Source that always returns text.
func NewStaticSource(name, text string) *StaticSource {
	return &StaticSource{name: name, text: text}
}

// Name implements Source.
func (s *StaticSource) Name() string { return s.name }

// Context implements Source.
func (s *StaticSource) Context(ctx context.Context, query string) (string, error) {
	return s.text, nil
}

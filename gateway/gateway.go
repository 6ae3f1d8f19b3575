// Package gateway composes provider, conversation, knowledge, ratelimit, and
// persist into the chat request pipeline: admit, assemble context, call the
// backend, commit the exchange.
//
// The gateway initializes from configuration via New, creating all subsystems
// internally. Functional options allow test overrides of any subsystem.
//
//	g, err := gateway.New(&cfg)
//	result, err := g.Chat(ctx, gateway.ChatRequest{Message: "Hi"})
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/siteassist/gateway/conversation"
	"github.com/siteassist/gateway/core/protocol"
	"github.com/siteassist/gateway/knowledge"
	"github.com/siteassist/gateway/knowledge/vectorstore"
	"github.com/siteassist/gateway/observability"
	"github.com/siteassist/gateway/persist"
	"github.com/siteassist/gateway/provider"
	"github.com/siteassist/gateway/ratelimit"
)

// MaxMessageLength is the longest accepted user message, in runes.
const MaxMessageLength = 1000

// ChatRequest is one inbound chat turn.
type ChatRequest struct {
	// Message is the visitor's text, 1..MaxMessageLength runes.
	Message string

	// ConversationID continues an existing conversation. Empty starts a new
	// one; non-empty values must be UUIDs.
	ConversationID string

	// ClientIP keys the per-IP admission window.
	ClientIP string
}

// ChatResult is the outcome of a completed chat turn.
type ChatResult struct {
	Reply          string
	ConversationID string
	TokensUsed     int
}

// Option configures a Gateway after config-driven initialization.
// Applied by New after cold start; overrides replace config-created defaults.
type Option func(*Gateway)

// WithProvider overrides the config-created backend client. An injected
// client carries its own credential, so it satisfies the credential
// precondition on its own.
func WithProvider(c provider.Client) Option {
	return func(g *Gateway) {
		g.provider = c
		g.hasCredential = true
	}
}

// WithStore overrides the config-created conversation store.
func WithStore(s conversation.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithLimiter overrides the config-created rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithAssembler overrides the config-created context assembler.
func WithAssembler(a *knowledge.Assembler) Option {
	return func(g *Gateway) { g.assembler = a }
}

// WithRecorder overrides the config-created transcript recorder.
func WithRecorder(r persist.Recorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// Gateway is the chat pipeline orchestrator.
type Gateway struct {
	provider  provider.Client
	store     conversation.Store
	limiter   *ratelimit.Limiter
	assembler *knowledge.Assembler
	recorder  persist.Recorder
	observer  observability.Observer
	vectors   vectorstore.VectorStore

	model         string
	disabled      bool
	hasCredential bool
	adminToken    string
}

// New creates a Gateway from configuration. Subsystems are initialized from
// their respective config sections. Functional options applied after
// initialization can override any subsystem for testing.
func New(cfg *Config, opts ...Option) (*Gateway, error) {
	client, err := provider.New(&cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider client: %w", err)
	}

	store, err := conversation.New(&cfg.Conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation store: %w", err)
	}

	limiter, err := ratelimit.New(&cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	recorder, err := persist.New(&cfg.Persist)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	observerName := cfg.Observer
	if observerName == "" {
		observerName = "slog"
	}
	observer, err := observability.GetObserver(observerName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	var assemblerOpts []knowledge.Option
	var vectors vectorstore.VectorStore
	if cfg.Retrieval.Qdrant.URL != "" {
		embedder, ok := client.(provider.Embedder)
		if !ok {
			return nil, fmt.Errorf("retrieval requires an embeddings-capable provider, %q is not", cfg.Provider.Kind)
		}
		vectors, err = vectorstore.NewQdrant(cfg.Retrieval.Qdrant)
		if err != nil {
			return nil, fmt.Errorf("failed to create vector store: %w", err)
		}
		assemblerOpts = append(assemblerOpts,
			knowledge.WithSource(knowledge.NewVectorSource(embedder, vectors, cfg.Retrieval.EmbedModel)))
	}

	g := &Gateway{
		provider:      client,
		store:         store,
		limiter:       limiter,
		assembler:     knowledge.New(&cfg.Knowledge, assemblerOpts...),
		recorder:      recorder,
		observer:      observer,
		vectors:       vectors,
		model:         cfg.Provider.Model,
		disabled:      cfg.Disabled,
		hasCredential: cfg.Provider.APIKey != "",
		adminToken:    cfg.AdminToken,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Chat runs one turn of the pipeline. The returned ChatResult always carries
// the conversation id, generated when the request omitted one.
//
// A disabled service and a missing credential are the same precondition:
// both reject before rate limiting, so a misconfigured deployment never
// consumes admission counters or assembles context.
func (g *Gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if g.disabled || !g.hasCredential {
		return nil, ErrServiceDisabled
	}

	if req.Message == "" {
		return nil, invalidInput("message", "must not be empty")
	}
	if len([]rune(req.Message)) > MaxMessageLength {
		return nil, invalidInput("message", fmt.Sprintf("exceeds %d characters", MaxMessageLength))
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	} else if uuid.Validate(conversationID) != nil {
		return nil, invalidInput("conversation_id", "must be a UUID")
	}

	if !g.limiter.Admit(ctx, req.ClientIP, conversationID) {
		g.emit(ctx, EventRateLimited, observability.LevelWarning, map[string]any{
			"conversation_id": conversationID,
		})
		return nil, ErrRateLimited
	}

	g.emit(ctx, EventTurnStart, observability.LevelVerbose, map[string]any{
		"conversation_id": conversationID,
		"message_length":  len(req.Message),
	})

	messages, err := g.buildMessages(ctx, conversationID, req.Message)
	if err != nil {
		return nil, err
	}

	resp, err := g.provider.Chat(ctx, messages, g.model)
	if err != nil {
		g.emit(ctx, EventProviderError, observability.LevelError, map[string]any{
			"conversation_id": conversationID,
			"provider":        g.provider.Name(),
			"error":           err.Error(),
		})
		return nil, err
	}

	if err := g.store.AppendExchange(ctx, conversationID, req.Message, resp.Content); err != nil {
		g.emit(ctx, EventRecordFailed, observability.LevelWarning, map[string]any{
			"conversation_id": conversationID,
			"stage":           "history",
			"error":           err.Error(),
		})
	}

	g.record(ctx, conversationID, protocol.RoleUser, req.Message, 0)
	g.record(ctx, conversationID, protocol.RoleAssistant, resp.Content, resp.TokensUsed)

	g.emit(ctx, EventTurnComplete, observability.LevelInfo, map[string]any{
		"conversation_id": conversationID,
		"provider":        g.provider.Name(),
		"tokens_used":     resp.TokensUsed,
	})

	return &ChatResult{
		Reply:          resp.Content,
		ConversationID: conversationID,
		TokensUsed:     resp.TokensUsed,
	}, nil
}

// buildMessages assembles the provider message list: one system message with
// the prompt and context blocks, the rolling history, then the new user turn.
func (g *Gateway) buildMessages(ctx context.Context, conversationID, message string) ([]protocol.Message, error) {
	system := g.assembler.SystemPrompt()

	if block := g.assembler.Build(ctx, message); block != "" {
		system += "\n\nContext:\n" + block
	}

	if identity := g.store.Verified(ctx, conversationID); identity != nil {
		block, err := g.assembler.OrderContext(ctx, identity.OrderID, identity.Email)
		switch {
		case err != nil:
			// Degraded turn: the session stays verified but this reply
			// proceeds without the order block.
			g.emit(ctx, EventOrderLookupFailed, observability.LevelWarning, map[string]any{
				"conversation_id": conversationID,
				"error":           err.Error(),
			})
		case block != "":
			system += "\n\n" + block
		}
	}

	history := g.store.History(ctx, conversationID)

	messages := make([]protocol.Message, 0, len(history)+2)
	messages = append(messages, protocol.NewMessage(protocol.RoleSystem, system))
	messages = append(messages, conversation.FormatForProvider(history)...)
	messages = append(messages, protocol.NewMessage(protocol.RoleUser, message))
	return messages, nil
}

// VerifyOrder checks an order id and email against the order source and, on
// success, marks the conversation verified and returns the looked-up order
// details so the caller can show them. Failures are indistinguishable: wrong
// id, wrong email, and missing order all return ErrVerificationFailed.
func (g *Gateway) VerifyOrder(ctx context.Context, conversationID string, orderID int64, email string) (string, error) {
	if g.disabled {
		return "", ErrServiceDisabled
	}
	if uuid.Validate(conversationID) != nil {
		return "", invalidInput("conversation_id", "must be a UUID")
	}
	if orderID <= 0 || email == "" {
		return "", ErrVerificationFailed
	}

	block, err := g.assembler.OrderContext(ctx, orderID, email)
	if err != nil {
		g.emit(ctx, EventOrderVerifyFailed, observability.LevelWarning, map[string]any{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
		return "", ErrVerificationFailed
	}
	if block == "" {
		g.emit(ctx, EventOrderVerifyFailed, observability.LevelInfo, map[string]any{
			"conversation_id": conversationID,
		})
		return "", ErrVerificationFailed
	}

	identity := conversation.VerifiedIdentity{OrderID: orderID, Email: email}
	if err := g.store.SetVerified(ctx, conversationID, identity); err != nil {
		return "", fmt.Errorf("failed to record verification: %w", err)
	}

	g.emit(ctx, EventOrderVerified, observability.LevelInfo, map[string]any{
		"conversation_id": conversationID,
	})
	return block, nil
}

// SaveLead validates and records a captured lead. A lead needs at least one
// way to reach the visitor back.
func (g *Gateway) SaveLead(ctx context.Context, lead persist.Lead) error {
	if g.disabled {
		return ErrServiceDisabled
	}
	if lead.Email == "" && lead.Phone == "" {
		return invalidInput("lead", "email or phone is required")
	}
	if lead.CapturedAt.IsZero() {
		lead.CapturedAt = time.Now()
	}

	if err := g.recorder.SaveLead(ctx, lead); err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}

	g.emit(ctx, EventLeadCaptured, observability.LevelInfo, map[string]any{
		"conversation_id": lead.ConversationID,
	})
	return nil
}

// TestConnectionResult is the admin probe outcome. Unlike the visitor
// surface, it carries backend detail: the caller holds the admin token.
type TestConnectionResult struct {
	Provider string
	Response *protocol.ChatResponse
}

// TestConnection sends a provider's fixed probe. With a nil or empty
// override it probes the configured backend; an override with explicit kind
// and credential probes that backend instead, so credentials can be checked
// before committing them to config. The token gates the admin surface; an
// empty configured token disables it entirely.
func (g *Gateway) TestConnection(ctx context.Context, token string, override *provider.Config) (*TestConnectionResult, error) {
	if g.adminToken == "" || token != g.adminToken {
		return nil, ErrVerificationFailed
	}

	client := g.provider
	if override != nil && override.Kind != "" {
		c, err := provider.New(override)
		if err != nil {
			return nil, err
		}
		client = c
	}

	resp, err := client.TestConnection(ctx)
	if err != nil {
		return nil, err
	}
	return &TestConnectionResult{Provider: client.Name(), Response: resp}, nil
}

// IsVerified reports whether the conversation completed order verification.
func (g *Gateway) IsVerified(ctx context.Context, conversationID string) bool {
	return g.store.IsVerified(ctx, conversationID)
}

// Close releases all subsystem resources.
func (g *Gateway) Close() error {
	var firstErr error
	if err := g.store.Close(); err != nil {
		firstErr = err
	}
	if err := g.limiter.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := g.recorder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if g.vectors != nil {
		if err := g.vectors.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (g *Gateway) record(ctx context.Context, conversationID string, role protocol.Role, content string, tokens int) {
	if err := g.recorder.SaveMessage(ctx, conversationID, role, content, tokens); err != nil {
		g.emit(ctx, EventRecordFailed, observability.LevelWarning, map[string]any{
			"conversation_id": conversationID,
			"stage":           "transcript",
			"error":           err.Error(),
		})
	}
}

func (g *Gateway) emit(ctx context.Context, eventType observability.EventType, level observability.Level, data map[string]any) {
	g.observer.OnEvent(ctx, observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "gateway",
		Data:      data,
	})
}

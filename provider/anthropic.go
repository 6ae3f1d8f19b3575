package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/siteassist/gateway/core/protocol"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"

	// Anthropic responses can take longer than the OpenAI-compatible
	// backends, so the timeout is doubled.
	anthropicTimeout = 60 * time.Second

	// Placeholder injected when the first non-system message is not from the
	// user, since the wire protocol requires conversations to open with one.
	anthropicPlaceholder = "Continue the conversation."
)

// Anthropic is a client for the Anthropic Messages API. The wire protocol
// differs from the OpenAI format in two ways this client normalizes:
// system content travels in a top-level field rather than the message list,
// and the remaining messages must strictly alternate user/assistant starting
// with user.
type Anthropic struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewAnthropic creates a client for the Anthropic API.
func NewAnthropic(apiKey string) *Anthropic {
	return &Anthropic{
		apiKey:     apiKey,
		endpoint:   anthropicBaseURL,
		httpClient: &http.Client{Timeout: anthropicTimeout},
	}
}

// Name implements Client.
func (c *Anthropic) Name() string {
	return "Anthropic"
}

// SupportedModels implements Client.
func (c *Anthropic) SupportedModels() map[string]string {
	return map[string]string{
		"claude-3-5-sonnet-20241022": "Claude 3.5 Sonnet (Latest)",
		"claude-3-5-haiku-20241022":  "Claude 3.5 Haiku (Fast)",
		"claude-3-opus-20240229":     "Claude 3 Opus (Most Capable)",
		"claude-3-sonnet-20240229":   "Claude 3 Sonnet",
		"claude-3-haiku-20240307":    "Claude 3 Haiku (Fastest)",
	}
}

type anthropicChatRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []protocol.Message `json:"messages"`
}

type anthropicChatResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat implements Client.
func (c *Anthropic) Chat(ctx context.Context, messages []protocol.Message, model string) (*protocol.ChatResponse, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}
	if model == "" {
		return nil, ErrNoModel
	}

	system, normalized := normalizeAnthropic(messages)

	body, err := json.Marshal(anthropicChatRequest{
		Model:     model,
		MaxTokens: 1024,
		System:    system,
		Messages:  normalized,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}

	var parsed anthropicChatResponse
	if resp.StatusCode != http.StatusOK {
		message := "unknown error"
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			message = parsed.Error.Message
		}
		return nil, &UpstreamError{Provider: c.Name(), Status: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(parsed.Content) == 0 {
		return nil, fmt.Errorf("%w: missing content", ErrInvalidResponse)
	}

	echo := parsed.Model
	if echo == "" {
		echo = model
	}

	return &protocol.ChatResponse{
		Content:    parsed.Content[0].Text,
		TokensUsed: parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		Model:      echo,
	}, nil
}

// TestConnection implements Client.
func (c *Anthropic) TestConnection(ctx context.Context) (*protocol.ChatResponse, error) {
	return c.Chat(ctx, []protocol.Message{
		protocol.NewMessage(protocol.RoleUser, probeMessage),
	}, "claude-3-5-haiku-20241022")
}

// normalizeAnthropic rewrites a normalized message list into the shape the
// Anthropic API requires. System entries are concatenated (in encounter
// order, blank-line joined) into the returned system string. Consecutive
// same-role entries are merged into one, also blank-line joined, so no
// content is ever dropped. If the first remaining entry is not from the user,
// a placeholder user entry is synthesized before it.
func normalizeAnthropic(messages []protocol.Message) (string, []protocol.Message) {
	var system strings.Builder
	normalized := make([]protocol.Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == protocol.RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(msg.Content)
			continue
		}

		if len(normalized) > 0 && normalized[len(normalized)-1].Role == msg.Role {
			normalized[len(normalized)-1].Content += "\n\n" + msg.Content
			continue
		}

		if len(normalized) == 0 && msg.Role != protocol.RoleUser {
			normalized = append(normalized, protocol.NewMessage(protocol.RoleUser, anthropicPlaceholder))
		}

		normalized = append(normalized, msg)
	}

	return system.String(), normalized
}

var _ Client = (*Anthropic)(nil)

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/siteassist/gateway/core/protocol"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	openaiBaseURL = "https://api.openai.com/v1"

	// Timeout for OpenAI-compatible backends.
	openaiTimeout = 30 * time.Second

	// Fixed probe sent by TestConnection.
	probeMessage = `Say "Connection successful!" in exactly those words.`
)

// OpenAICompatible is a client for any backend speaking the OpenAI
// chat-completions wire format. Messages pass through as-is, including the
// system role.
type OpenAICompatible struct {
	name       string
	baseURL    string
	apiKey     string
	probeModel string
	models     map[string]string
	httpClient *http.Client
}

// NewGroq creates a client for the Groq API.
func NewGroq(apiKey string) *OpenAICompatible {
	return &OpenAICompatible{
		name:       "Groq",
		baseURL:    groqBaseURL,
		apiKey:     apiKey,
		probeModel: "llama-3.1-8b-instant",
		models: map[string]string{
			"llama-3.3-70b-versatile": "Llama 3.3 70B Versatile",
			"llama-3.1-70b-versatile": "Llama 3.1 70B Versatile",
			"llama-3.1-8b-instant":    "Llama 3.1 8B Instant",
			"mixtral-8x7b-32768":      "Mixtral 8x7B",
			"gemma2-9b-it":            "Gemma 2 9B",
		},
		httpClient: &http.Client{Timeout: openaiTimeout},
	}
}

// NewOpenAI creates a client for the OpenAI API.
func NewOpenAI(apiKey string) *OpenAICompatible {
	return &OpenAICompatible{
		name:       "OpenAI",
		baseURL:    openaiBaseURL,
		apiKey:     apiKey,
		probeModel: "gpt-4o-mini",
		models: map[string]string{
			"gpt-4o":        "GPT-4o",
			"gpt-4o-mini":   "GPT-4o Mini",
			"gpt-4-turbo":   "GPT-4 Turbo",
			"gpt-3.5-turbo": "GPT-3.5 Turbo",
		},
		httpClient: &http.Client{Timeout: openaiTimeout},
	}
}

// NewCompatible creates a client for an OpenAI-compatible backend at a custom
// base URL. probeModel doubles as the default model for TestConnection.
func NewCompatible(name, baseURL, apiKey, probeModel string) *OpenAICompatible {
	return &OpenAICompatible{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		probeModel: probeModel,
		models:     map[string]string{},
		httpClient: &http.Client{Timeout: openaiTimeout},
	}
}

// Name implements Client.
func (c *OpenAICompatible) Name() string {
	return c.name
}

// SupportedModels implements Client.
func (c *OpenAICompatible) SupportedModels() map[string]string {
	models := make(map[string]string, len(c.models))
	for id, label := range c.models {
		models[id] = label
	}
	return models
}

type openaiChatRequest struct {
	Model       string             `json:"model"`
	Messages    []protocol.Message `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream"`
}

type openaiChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *openaiError `json:"error"`
}

type openaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Chat implements Client.
func (c *OpenAICompatible) Chat(ctx context.Context, messages []protocol.Message, model string) (*protocol.ChatResponse, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}
	if model == "" {
		return nil, ErrNoModel
	}

	body, err := json.Marshal(openaiChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
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

	var parsed openaiChatResponse
	if resp.StatusCode != http.StatusOK {
		message := "unknown error"
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			message = parsed.Error.Message
		}
		return nil, &UpstreamError{Provider: c.name, Status: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: missing choices", ErrInvalidResponse)
	}

	echo := parsed.Model
	if echo == "" {
		echo = model
	}

	return &protocol.ChatResponse{
		Content:    parsed.Choices[0].Message.Content,
		TokensUsed: parsed.Usage.TotalTokens,
		Model:      echo,
	}, nil
}

// TestConnection implements Client.
func (c *OpenAICompatible) TestConnection(ctx context.Context) (*protocol.ChatResponse, error) {
	return c.Chat(ctx, []protocol.Message{
		protocol.NewMessage(protocol.RoleUser, probeMessage),
	}, c.probeModel)
}

type openaiEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *openaiError `json:"error"`
}

// Embed implements Embedder using the backend's embeddings endpoint.
func (c *OpenAICompatible) Embed(ctx context.Context, input, model string) ([]float32, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}
	if model == "" {
		return nil, ErrNoModel
	}

	body, err := json.Marshal(openaiEmbedRequest{Model: model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
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

	var parsed openaiEmbedResponse
	if resp.StatusCode != http.StatusOK {
		message := "unknown error"
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			message = parsed.Error.Message
		}
		return nil, &UpstreamError{Provider: c.name, Status: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: missing embedding data", ErrInvalidResponse)
	}

	return parsed.Data[0].Embedding, nil
}

var (
	_ Client   = (*OpenAICompatible)(nil)
	_ Embedder = (*OpenAICompatible)(nil)
)

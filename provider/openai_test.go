package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/siteassist/gateway/core/protocol"
	"github.com/siteassist/gateway/provider"
)

func chatStub(t *testing.T, handler http.HandlerFunc) (*provider.OpenAICompatible, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := provider.NewCompatible("Stub", srv.URL, "test-key", "stub-model")
	return client, srv.Close
}

func TestOpenAICompatible_Chat(t *testing.T) {
	var captured struct {
		Model    string             `json:"model"`
		Messages []protocol.Message `json:"messages"`
	}
	client, closeFn := chatStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("got path %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("got Authorization %q, want %q", got, "Bearer test-key")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "stub-model-0125",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Hi there!"}},
			},
			"usage": map[string]int{"prompt_tokens": 9, "completion_tokens": 4, "total_tokens": 13},
		})
	})
	defer closeFn()

	messages := []protocol.Message{
		protocol.NewMessage(protocol.RoleSystem, "You are helpful."),
		protocol.NewMessage(protocol.RoleUser, "Hello"),
	}

	resp, err := client.Chat(context.Background(), messages, "stub-model")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Content != "Hi there!" {
		t.Errorf("got content %q, want %q", resp.Content, "Hi there!")
	}
	if resp.TokensUsed != 13 {
		t.Errorf("got tokens %d, want 13", resp.TokensUsed)
	}
	if resp.Model != "stub-model-0125" {
		t.Errorf("got model echo %q, want %q", resp.Model, "stub-model-0125")
	}

	// System role passes through as-is on this wire format.
	if len(captured.Messages) != 2 {
		t.Fatalf("got %d wire messages, want 2", len(captured.Messages))
	}
	if captured.Messages[0].Role != protocol.RoleSystem {
		t.Errorf("got first wire role %q, want %q", captured.Messages[0].Role, protocol.RoleSystem)
	}
}

func TestOpenAICompatible_Chat_InputValidation(t *testing.T) {
	client := provider.NewCompatible("Stub", "http://unused", "test-key", "stub-model")

	tests := []struct {
		name     string
		messages []protocol.Message
		model    string
		want     error
	}{
		{"no messages", nil, "stub-model", provider.ErrNoMessages},
		{"no model", []protocol.Message{protocol.NewMessage(protocol.RoleUser, "hi")}, "", provider.ErrNoModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Chat(context.Background(), tt.messages, tt.model)
			if !errors.Is(err, tt.want) {
				t.Errorf("got error %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenAICompatible_Chat_UpstreamError(t *testing.T) {
	client, closeFn := chatStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limit exceeded", "type": "rate_limit"},
		})
	})
	defer closeFn()

	_, err := client.Chat(context.Background(), []protocol.Message{
		protocol.NewMessage(protocol.RoleUser, "Hello"),
	}, "stub-model")

	var upstream *provider.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("got error %v, want *UpstreamError", err)
	}
	if upstream.Status != http.StatusTooManyRequests {
		t.Errorf("got status %d, want %d", upstream.Status, http.StatusTooManyRequests)
	}
	if upstream.Message != "rate limit exceeded" {
		t.Errorf("got upstream message %q, want %q", upstream.Message, "rate limit exceeded")
	}
}

func TestOpenAICompatible_Chat_InvalidResponse(t *testing.T) {
	client, closeFn := chatStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"unexpected": true})
	})
	defer closeFn()

	_, err := client.Chat(context.Background(), []protocol.Message{
		protocol.NewMessage(protocol.RoleUser, "Hello"),
	}, "stub-model")

	if !errors.Is(err, provider.ErrInvalidResponse) {
		t.Errorf("got error %v, want ErrInvalidResponse", err)
	}
}

func TestOpenAICompatible_Chat_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := provider.NewCompatible("Stub", srv.URL, "test-key", "stub-model")
	_, err := client.Chat(context.Background(), []protocol.Message{
		protocol.NewMessage(protocol.RoleUser, "Hello"),
	}, "stub-model")

	if !errors.Is(err, provider.ErrTransport) {
		t.Errorf("got error %v, want ErrTransport", err)
	}
}

func TestOpenAICompatible_TestConnection(t *testing.T) {
	var gotModel string
	client, closeFn := chatStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "Connection successful!"}},
			},
		})
	})
	defer closeFn()

	resp, err := client.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("TestConnection failed: %v", err)
	}
	if resp.Content != "Connection successful!" {
		t.Errorf("got content %q, want %q", resp.Content, "Connection successful!")
	}
	if gotModel != "stub-model" {
		t.Errorf("got probe model %q, want %q", gotModel, "stub-model")
	}
}

func TestOpenAICompatible_Embed(t *testing.T) {
	client, closeFn := chatStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("got path %q, want /embeddings", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	})
	defer closeFn()

	vec, err := client.Embed(context.Background(), "storage options", "embed-model")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("got %d dimensions, want 3", len(vec))
	}
}

func TestNew_KnownKinds(t *testing.T) {
	tests := []struct {
		kind     provider.Kind
		wantName string
	}{
		{provider.KindGroq, "Groq"},
		{provider.KindOpenAI, "OpenAI"},
		{provider.KindAnthropic, "Anthropic"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			client, err := provider.New(&provider.Config{Kind: tt.kind, APIKey: "k"})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if client.Name() != tt.wantName {
				t.Errorf("got name %q, want %q", client.Name(), tt.wantName)
			}
		})
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := provider.New(&provider.Config{Kind: "duck-typed"})
	if !errors.Is(err, provider.ErrUnknownKind) {
		t.Errorf("got error %v, want ErrUnknownKind", err)
	}
}

func TestNew_CompatibleRequiresBaseURL(t *testing.T) {
	_, err := provider.New(&provider.Config{Kind: provider.KindCompatible, APIKey: "k"})
	if !errors.Is(err, provider.ErrUnknownKind) {
		t.Errorf("got error %v, want ErrUnknownKind", err)
	}
}

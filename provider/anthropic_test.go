package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/siteassist/gateway/core/protocol"
)

func TestNormalizeAnthropic_SystemExtraction(t *testing.T) {
	system, msgs := normalizeAnthropic([]protocol.Message{
		protocol.NewMessage(protocol.RoleSystem, "You are helpful."),
		protocol.NewMessage(protocol.RoleUser, "Hello"),
		protocol.NewMessage(protocol.RoleSystem, "Answer from context."),
	})

	want := "You are helpful.\n\nAnswer from context."
	if system != want {
		t.Errorf("got system %q, want %q", system, want)
	}

	for i, msg := range msgs {
		if msg.Role == protocol.RoleSystem {
			t.Errorf("message %d: system role leaked into message list", i)
		}
	}
}

func TestNormalizeAnthropic_MergesConsecutiveRoles(t *testing.T) {
	_, msgs := normalizeAnthropic([]protocol.Message{
		protocol.NewMessage(protocol.RoleUser, "first"),
		protocol.NewMessage(protocol.RoleUser, "second"),
		protocol.NewMessage(protocol.RoleAssistant, "reply one"),
		protocol.NewMessage(protocol.RoleAssistant, "reply two"),
		protocol.NewMessage(protocol.RoleUser, "third"),
	})

	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Content != "first\n\nsecond" {
		t.Errorf("got merged user content %q, want %q", msgs[0].Content, "first\n\nsecond")
	}
	if msgs[1].Content != "reply one\n\nreply two" {
		t.Errorf("got merged assistant content %q, want %q", msgs[1].Content, "reply one\n\nreply two")
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Role == msgs[i-1].Role {
			t.Errorf("messages %d and %d share role %q", i-1, i, msgs[i].Role)
		}
	}
}

func TestNormalizeAnthropic_StartsWithUser(t *testing.T) {
	_, msgs := normalizeAnthropic([]protocol.Message{
		protocol.NewMessage(protocol.RoleAssistant, "I answered earlier."),
		protocol.NewMessage(protocol.RoleUser, "Follow-up"),
	})

	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != protocol.RoleUser {
		t.Errorf("got first role %q, want %q", msgs[0].Role, protocol.RoleUser)
	}
	if msgs[0].Content != anthropicPlaceholder {
		t.Errorf("got placeholder %q, want %q", msgs[0].Content, anthropicPlaceholder)
	}
}

func TestNormalizeAnthropic_NoContentLost(t *testing.T) {
	input := []protocol.Message{
		protocol.NewMessage(protocol.RoleSystem, "system alpha"),
		protocol.NewMessage(protocol.RoleAssistant, "assistant beta"),
		protocol.NewMessage(protocol.RoleAssistant, "assistant gamma"),
		protocol.NewMessage(protocol.RoleUser, "user delta"),
		protocol.NewMessage(protocol.RoleUser, "user epsilon"),
		protocol.NewMessage(protocol.RoleSystem, "system zeta"),
	}

	system, msgs := normalizeAnthropic(input)

	var joined strings.Builder
	joined.WriteString(system)
	for _, msg := range msgs {
		joined.WriteString("\n")
		joined.WriteString(msg.Content)
	}

	for _, msg := range input {
		if !strings.Contains(joined.String(), msg.Content) {
			t.Errorf("content %q missing after normalization", msg.Content)
		}
	}
}

func TestNormalizeAnthropic_Empty(t *testing.T) {
	system, msgs := normalizeAnthropic(nil)
	if system != "" {
		t.Errorf("got system %q, want empty", system)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
}

func TestAnthropic_Chat(t *testing.T) {
	var captured anthropicChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("got x-api-key %q, want %q", got, "test-key")
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("got anthropic-version %q, want %q", got, anthropicVersion)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "claude-3-5-sonnet-20241022",
			"content": []map[string]string{{"text": "Hi there!"}},
			"usage":   map[string]int{"input_tokens": 12, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	client := NewAnthropic("test-key")
	client.endpoint = srv.URL

	resp, err := client.Chat(context.Background(), []protocol.Message{
		protocol.NewMessage(protocol.RoleSystem, "Be brief."),
		protocol.NewMessage(protocol.RoleUser, "Hello"),
	}, "claude-3-5-sonnet-20241022")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Content != "Hi there!" {
		t.Errorf("got content %q, want %q", resp.Content, "Hi there!")
	}
	if resp.TokensUsed != 17 {
		t.Errorf("got tokens %d, want 17 (input+output)", resp.TokensUsed)
	}
	if captured.System != "Be brief." {
		t.Errorf("got wire system %q, want %q", captured.System, "Be brief.")
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != protocol.RoleUser {
		t.Errorf("got wire messages %+v, want single user message", captured.Messages)
	}
}

func TestAnthropic_Chat_MissingCredential(t *testing.T) {
	client := NewAnthropic("")

	_, err := client.Chat(context.Background(), []protocol.Message{
		protocol.NewMessage(protocol.RoleUser, "Hello"),
	}, "claude-3-5-sonnet-20241022")

	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("got error %v, want ErrMissingCredential", err)
	}
}

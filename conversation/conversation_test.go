package conversation_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/siteassist/gateway/conversation"
	"github.com/siteassist/gateway/core/protocol"
)

func newTestStore(t *testing.T) conversation.Store {
	t.Helper()
	cfg := conversation.DefaultConfig()
	store, err := conversation.New(&cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return store
}

func TestStore_History_EmptyWhenUnknown(t *testing.T) {
	store := newTestStore(t)

	history := store.History(context.Background(), "no-such-conversation")
	if len(history) != 0 {
		t.Errorf("got %d messages, want 0", len(history))
	}
}

func TestStore_Append_PreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	turns := []struct {
		role    protocol.Role
		content string
	}{
		{protocol.RoleUser, "Hello"},
		{protocol.RoleAssistant, "Hi there!"},
		{protocol.RoleUser, "What are your opening hours?"},
		{protocol.RoleAssistant, "We are open 9 to 5."},
	}

	for _, turn := range turns {
		if err := store.Append(ctx, "conv-1", turn.role, turn.content); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	history := store.History(ctx, "conv-1")
	if len(history) != len(turns) {
		t.Fatalf("got %d messages, want %d", len(history), len(turns))
	}
	for i, turn := range turns {
		if history[i].Role != turn.role || history[i].Content != turn.content {
			t.Errorf("message %d: got %s/%q, want %s/%q",
				i, history[i].Role, history[i].Content, turn.role, turn.content)
		}
		if history[i].TokenCount <= 0 {
			t.Errorf("message %d: token count not estimated", i)
		}
	}
}

func TestStore_History_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Append(ctx, "conv-1", protocol.RoleUser, "Hello")
	store.Append(ctx, "conv-1", protocol.RoleAssistant, "Hi there!")

	first := store.History(ctx, "conv-1")
	second := store.History(ctx, "conv-1")

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Role != second[i].Role || first[i].Content != second[i].Content {
			t.Errorf("message %d differs between reads", i)
		}
	}
}

func TestStore_AppendExchange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendExchange(ctx, "conv-1", "Hello", "Hi there!"); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}

	history := store.History(ctx, "conv-1")
	if len(history) != 2 {
		t.Fatalf("got %d messages, want 2", len(history))
	}
	if history[0].Role != protocol.RoleUser || history[0].Content != "Hello" {
		t.Errorf("got first message %s/%q, want user/Hello", history[0].Role, history[0].Content)
	}
	if history[1].Role != protocol.RoleAssistant || history[1].Content != "Hi there!" {
		t.Errorf("got second message %s/%q, want assistant/Hi there!", history[1].Role, history[1].Content)
	}
}

func TestStore_AppendExchange_PairsStayAdjacent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	const n = 50

	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			store.AppendExchange(ctx, "conv-1", "question", "answer")
		}()
	}
	wg.Wait()

	history := store.History(ctx, "conv-1")
	for i := 0; i+1 < len(history); i += 2 {
		if history[i].Role != protocol.RoleUser || history[i+1].Role != protocol.RoleAssistant {
			t.Fatalf("messages %d/%d: got %s/%s, want user/assistant pair",
				i, i+1, history[i].Role, history[i+1].Role)
		}
	}
}

func TestStore_Clear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Append(ctx, "conv-1", protocol.RoleUser, "Hello")
	if err := store.Clear(ctx, "conv-1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if got := len(store.History(ctx, "conv-1")); got != 0 {
		t.Errorf("got %d messages after Clear, want 0", got)
	}
}

func TestStore_TrimAppliedOnAppend(t *testing.T) {
	cfg := conversation.DefaultConfig()
	store, err := conversation.New(&cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	// Each message estimates to ~500 tokens; 10 of them exceed the 3000
	// budget after every append has re-trimmed.
	big := strings.Repeat("word ", 400)
	for range 10 {
		store.Append(ctx, "conv-1", protocol.RoleUser, big)
	}

	history := store.History(ctx, "conv-1")
	total := 0
	for _, msg := range history {
		total += msg.TokenCount
	}
	if total > 3000 && len(history) != 2 {
		t.Errorf("got %d tokens in %d messages, want within budget or at floor", total, len(history))
	}
	if len(history) > 20 {
		t.Errorf("got %d messages, want <= 20", len(history))
	}
}

func TestStore_CountCapIndependentOfTokens(t *testing.T) {
	cfg := conversation.DefaultConfig()
	store, err := conversation.New(&cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	for range 40 {
		store.Append(ctx, "conv-1", protocol.RoleUser, "hi")
	}

	if got := len(store.History(ctx, "conv-1")); got != 20 {
		t.Errorf("got %d messages, want 20", got)
	}
}

func TestStore_VerifiedIdentity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if store.IsVerified(ctx, "conv-1") {
		t.Error("new conversation should not be verified")
	}

	identity := conversation.VerifiedIdentity{OrderID: 12345, Email: "a@b.com"}
	if err := store.SetVerified(ctx, "conv-1", identity); err != nil {
		t.Fatalf("SetVerified failed: %v", err)
	}

	if !store.IsVerified(ctx, "conv-1") {
		t.Error("expected conversation to be verified")
	}

	got := store.Verified(ctx, "conv-1")
	if got == nil {
		t.Fatal("Verified returned nil")
	}
	if got.OrderID != 12345 || got.Email != "a@b.com" {
		t.Errorf("got identity %+v, want %+v", *got, identity)
	}

	// The side channel is independent of history trimming.
	if got := len(store.History(ctx, "conv-1")); got != 0 {
		t.Errorf("got %d history messages, want 0", got)
	}
}

func TestFormatForProvider(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Append(ctx, "conv-1", protocol.RoleUser, "Hello")
	store.Append(ctx, "conv-1", protocol.RoleAssistant, "Hi there!")
	store.Append(ctx, "conv-1", protocol.RoleUser, "Thanks")

	formatted := conversation.FormatForProvider(store.History(ctx, "conv-1"))

	want := []protocol.Message{
		{Role: protocol.RoleUser, Content: "Hello"},
		{Role: protocol.RoleAssistant, Content: "Hi there!"},
		{Role: protocol.RoleUser, Content: "Thanks"},
	}

	if len(formatted) != len(want) {
		t.Fatalf("got %d messages, want %d", len(formatted), len(want))
	}
	for i := range want {
		if formatted[i] != want[i] {
			t.Errorf("message %d: got %+v, want %+v", i, formatted[i], want[i])
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		if got := conversation.EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q): got %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestWithEstimator(t *testing.T) {
	cfg := conversation.DefaultConfig()
	store, err := conversation.New(&cfg, conversation.WithEstimator(func(string) int { return 42 }))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	store.Append(ctx, "conv-1", protocol.RoleUser, "anything")

	history := store.History(ctx, "conv-1")
	if len(history) != 1 || history[0].TokenCount != 42 {
		t.Errorf("custom estimator not applied: %+v", history)
	}
}

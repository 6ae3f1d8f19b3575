package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/siteassist/gateway/core/protocol"
)

func testMessage(role protocol.Role, tokens int) Message {
	return Message{Role: role, Content: strings.Repeat("x", tokens*4), TokenCount: tokens}
}

func totalTokens(history []Message) int {
	total := 0
	for _, msg := range history {
		total += msg.TokenCount
	}
	return total
}

func TestTrim_TokenBudget(t *testing.T) {
	var history []Message
	for range 10 {
		history = append(history, testMessage(protocol.RoleUser, 500))
	}

	trimmed := trim(history, 3000, 20)

	if got := totalTokens(trimmed); got > 3000 {
		t.Errorf("got %d total tokens, want <= 3000", got)
	}
	if len(trimmed) != 6 {
		t.Errorf("got %d messages, want 6", len(trimmed))
	}
}

func TestTrim_DropsOldestFirst(t *testing.T) {
	history := []Message{
		{Role: protocol.RoleUser, Content: "oldest", TokenCount: 2000},
		{Role: protocol.RoleAssistant, Content: "middle", TokenCount: 2000},
		{Role: protocol.RoleUser, Content: "newest", TokenCount: 2000},
	}

	trimmed := trim(history, 3000, 20)

	if len(trimmed) != 2 {
		t.Fatalf("got %d messages, want 2", len(trimmed))
	}
	if trimmed[0].Content != "middle" || trimmed[1].Content != "newest" {
		t.Errorf("got %q, %q; want middle, newest", trimmed[0].Content, trimmed[1].Content)
	}
}

func TestTrim_FloorOfTwo(t *testing.T) {
	// A single message blows the whole budget; the most recent exchange must
	// still survive.
	history := []Message{
		{Role: protocol.RoleUser, Content: "question", TokenCount: 5000},
		{Role: protocol.RoleAssistant, Content: "answer", TokenCount: 5000},
	}

	trimmed := trim(history, 3000, 20)

	if len(trimmed) != 2 {
		t.Errorf("got %d messages, want floor of 2", len(trimmed))
	}
}

func TestTrim_FloorInvariant(t *testing.T) {
	// For any over-budget history, post-trim tokens <= budget OR the floor was
	// hit. The floor keeps the most recent exchange, so a one-message history
	// stays one message: trim never pads, it only drops.
	sizes := [][]int{
		{4000},
		{4000, 4000},
		{100, 100, 5000},
		{1000, 1000, 1000, 1000, 1000},
		{3000, 1, 1},
	}

	for _, tokens := range sizes {
		var history []Message
		for _, n := range tokens {
			history = append(history, testMessage(protocol.RoleUser, n))
		}

		trimmed := trim(history, 3000, 20)

		if totalTokens(trimmed) > 3000 && len(trimmed) > 2 {
			t.Errorf("sizes %v: got %d tokens in %d messages, want <= 3000 tokens or at most 2 messages",
				tokens, totalTokens(trimmed), len(trimmed))
		}
		if len(history) >= 2 && len(trimmed) < 2 {
			t.Errorf("sizes %v: trimmed to %d messages, floor is 2", tokens, len(trimmed))
		}
	}
}

func TestTrim_CountCap(t *testing.T) {
	// Pathological tiny-message flood: token budget never trips, count cap must.
	var history []Message
	for range 50 {
		history = append(history, testMessage(protocol.RoleUser, 1))
	}

	trimmed := trim(history, 3000, 20)

	if len(trimmed) != 20 {
		t.Errorf("got %d messages, want 20", len(trimmed))
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := newMemoryStore(limits{
		maxTokens:   3000,
		maxMessages: 20,
		ttl:         time.Hour,
		estimate:    EstimateTokens,
	})

	current := time.Unix(1700000000, 0)
	store.now = func() time.Time { return current }

	ctx := context.Background()
	if err := store.Append(ctx, "conv-1", protocol.RoleUser, "Hello"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.SetVerified(ctx, "conv-1", VerifiedIdentity{OrderID: 12345, Email: "a@b.com"}); err != nil {
		t.Fatalf("SetVerified failed: %v", err)
	}

	current = current.Add(59 * time.Minute)
	if got := len(store.History(ctx, "conv-1")); got != 1 {
		t.Errorf("before TTL: got %d messages, want 1", got)
	}
	if !store.IsVerified(ctx, "conv-1") {
		t.Error("before TTL: expected verified identity")
	}

	current = current.Add(2 * time.Minute)
	if got := len(store.History(ctx, "conv-1")); got != 0 {
		t.Errorf("after TTL: got %d messages, want 0", got)
	}
	if store.IsVerified(ctx, "conv-1") {
		t.Error("after TTL: verified identity should have expired")
	}
}

func TestMemoryStore_AppendRefreshesTTL(t *testing.T) {
	store := newMemoryStore(limits{
		maxTokens:   3000,
		maxMessages: 20,
		ttl:         time.Hour,
		estimate:    EstimateTokens,
	})

	current := time.Unix(1700000000, 0)
	store.now = func() time.Time { return current }

	ctx := context.Background()
	store.Append(ctx, "conv-1", protocol.RoleUser, "first")

	current = current.Add(50 * time.Minute)
	store.Append(ctx, "conv-1", protocol.RoleAssistant, "second")

	// 70 minutes after the first append, 20 after the second.
	current = current.Add(20 * time.Minute)
	if got := len(store.History(ctx, "conv-1")); got != 2 {
		t.Errorf("got %d messages, want 2 (append should refresh TTL)", got)
	}
}

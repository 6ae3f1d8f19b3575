package conversation

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/siteassist/gateway/core/protocol"
)

type historyEntry struct {
	messages  []Message
	expiresAt time.Time
}

type verifiedEntry struct {
	identity  VerifiedIdentity
	expiresAt time.Time
}

// memoryStore implements Store with an in-process map and lazy TTL expiry.
// One mutex guards both maps; per-conversation contention is negligible at
// the request rates the admission control allows through.
type memoryStore struct {
	mu        sync.Mutex
	limits    limits
	histories map[string]*historyEntry
	verified  map[string]*verifiedEntry
	now       func() time.Time
}

func newMemoryStore(lim limits) *memoryStore {
	return &memoryStore{
		limits:    lim,
		histories: make(map[string]*historyEntry),
		verified:  make(map[string]*verifiedEntry),
		now:       time.Now,
	}
}

// History implements Store.
func (s *memoryStore) History(ctx context.Context, conversationID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.histories[conversationID]
	if entry == nil || s.now().After(entry.expiresAt) {
		return []Message{}
	}
	return slices.Clone(entry.messages)
}

// Append implements Store.
func (s *memoryStore) Append(ctx context.Context, conversationID string, role protocol.Role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(conversationID, s.limits.newMessage(role, content, s.now()))
	return nil
}

// AppendExchange implements Store.
func (s *memoryStore) AppendExchange(ctx context.Context, conversationID, userContent, assistantContent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.appendLocked(conversationID,
		s.limits.newMessage(protocol.RoleUser, userContent, now),
		s.limits.newMessage(protocol.RoleAssistant, assistantContent, now),
	)
	return nil
}

func (s *memoryStore) appendLocked(conversationID string, msgs ...Message) {
	now := s.now()
	entry := s.histories[conversationID]
	if entry == nil || now.After(entry.expiresAt) {
		entry = &historyEntry{}
		s.histories[conversationID] = entry
	}

	entry.messages = trim(append(entry.messages, msgs...), s.limits.maxTokens, s.limits.maxMessages)
	entry.expiresAt = now.Add(s.limits.ttl)
}

// Clear implements Store.
func (s *memoryStore) Clear(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.histories, conversationID)
	return nil
}

// SetVerified implements Store.
func (s *memoryStore) SetVerified(ctx context.Context, conversationID string, identity VerifiedIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.verified[conversationID] = &verifiedEntry{
		identity:  identity,
		expiresAt: s.now().Add(s.limits.ttl),
	}
	return nil
}

// Verified implements Store.
func (s *memoryStore) Verified(ctx context.Context, conversationID string) *VerifiedIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.verified[conversationID]
	if entry == nil || s.now().After(entry.expiresAt) {
		return nil
	}
	identity := entry.identity
	return &identity
}

// IsVerified implements Store.
func (s *memoryStore) IsVerified(ctx context.Context, conversationID string) bool {
	return s.Verified(ctx, conversationID) != nil
}

// Close implements Store.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.histories = make(map[string]*historyEntry)
	s.verified = make(map[string]*verifiedEntry)
	return nil
}

var _ Store = (*memoryStore)(nil)

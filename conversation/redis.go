package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siteassist/gateway/core/protocol"
)

const (
	historyKeyPrefix  = "conv:history:"
	verifiedKeyPrefix = "conv:verified:"

	// Retries for the optimistic append transaction when concurrent turns
	// race on the same conversation key.
	appendRetries = 3
)

// redisStore implements Store on Redis. History and verified identity are
// JSON values under TTL-bounded keys; appends are optimistic WATCH/MULTI
// transactions so concurrent turns for one conversation serialize cleanly.
type redisStore struct {
	client *redis.Client
	limits limits
}

func newRedisStore(client *redis.Client, lim limits) *redisStore {
	return &redisStore{client: client, limits: lim}
}

// History implements Store. Any backend failure presents as empty history;
// the chat turn matters more than this ephemeral cache.
func (s *redisStore) History(ctx context.Context, conversationID string) []Message {
	val, err := s.client.Get(ctx, historyKeyPrefix+conversationID).Result()
	if err != nil {
		return []Message{}
	}

	var history []Message
	if err := json.Unmarshal([]byte(val), &history); err != nil {
		return []Message{}
	}
	return history
}

// Append implements Store.
func (s *redisStore) Append(ctx context.Context, conversationID string, role protocol.Role, content string) error {
	return s.append(ctx, conversationID, s.limits.newMessage(role, content, time.Now()))
}

// AppendExchange implements Store.
func (s *redisStore) AppendExchange(ctx context.Context, conversationID, userContent, assistantContent string) error {
	now := time.Now()
	return s.append(ctx, conversationID,
		s.limits.newMessage(protocol.RoleUser, userContent, now),
		s.limits.newMessage(protocol.RoleAssistant, assistantContent, now),
	)
}

func (s *redisStore) append(ctx context.Context, conversationID string, msgs ...Message) error {
	key := historyKeyPrefix + conversationID

	txn := func(tx *redis.Tx) error {
		var history []Message
		val, err := tx.Get(ctx, key).Result()
		switch {
		case err == nil:
			if err := json.Unmarshal([]byte(val), &history); err != nil {
				// Corrupt entry: start the history over rather than fail the turn.
				history = nil
			}
		case errors.Is(err, redis.Nil):
			// No history yet.
		default:
			return err
		}

		history = trim(append(history, msgs...), s.limits.maxTokens, s.limits.maxMessages)

		encoded, err := json.Marshal(history)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.limits.ttl)
			return nil
		})
		return err
	}

	var err error
	for range appendRetries {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// Clear implements Store.
func (s *redisStore) Clear(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, historyKeyPrefix+conversationID).Err()
}

// SetVerified implements Store.
func (s *redisStore) SetVerified(ctx context.Context, conversationID string, identity VerifiedIdentity) error {
	encoded, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, verifiedKeyPrefix+conversationID, encoded, s.limits.ttl).Err()
}

// Verified implements Store.
func (s *redisStore) Verified(ctx context.Context, conversationID string) *VerifiedIdentity {
	val, err := s.client.Get(ctx, verifiedKeyPrefix+conversationID).Result()
	if err != nil {
		return nil
	}

	var identity VerifiedIdentity
	if err := json.Unmarshal([]byte(val), &identity); err != nil {
		return nil
	}
	return &identity
}

// IsVerified implements Store.
func (s *redisStore) IsVerified(ctx context.Context, conversationID string) bool {
	return s.Verified(ctx, conversationID) != nil
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*redisStore)(nil)

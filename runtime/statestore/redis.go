package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the SCAN COUNT hint used when listing sessions.
const scanBatch = 100

// RedisStore provides a Redis-backed implementation of the TranscriptStore interface.
// Each session's turns are a Redis list of JSON records with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for a session's history, refreshed on every
// append. Default is 24 hours. Set to 0 for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys.
// Default is "stylist".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(24 * time.Hour),
//	    WithPrefix("myapp"),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    defaultTTLHours * time.Hour,
		prefix: "stylist",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Append pushes a turn onto its session's list and refreshes the TTL.
func (s *RedisStore) Append(ctx context.Context, record TurnRecord) error {
	if record.SessionID == "" {
		return ErrInvalidID
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	key := s.turnsKey(record.SessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// Load returns a session's turns in append order.
func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}

	raw, err := s.client.LRange(ctx, s.turnsKey(sessionID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	turns := make([]TurnRecord, 0, len(raw))
	for i, item := range raw {
		var record TurnRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn %d: %w", i, err)
		}
		turns = append(turns, record)
	}
	return turns, nil
}

// Delete removes a session's history.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	n, err := s.client.Del(ctx, s.turnsKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Sessions scans for session keys under the store's prefix.
func (s *RedisStore) Sessions(ctx context.Context) ([]string, error) {
	pattern := s.turnsKey("*")
	var ids []string
	iter := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, s.extractIDFromKey(iter.Val()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) turnsKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:turns", s.prefix, sessionID)
}

func (s *RedisStore) extractIDFromKey(key string) string {
	id := strings.TrimPrefix(key, s.prefix+":session:")
	return strings.TrimSuffix(id, ":turns")
}

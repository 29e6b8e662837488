package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/cache"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
)

const maxTxRetries = 64

// RedisStore keeps conversations as JSON values with a TTL. Updates run in
// WATCH/MULTI transactions so concurrent writers for one id never lose data.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the key expiry. Zero keeps conversations forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is cache.DefaultPrefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisClock overrides the timestamp source for UpdatedAt.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		s.now = now
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		ttl:    DefaultTTL,
		prefix: cache.DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get loads the conversation or returns a fresh one when the key is absent.
func (s *RedisStore) Get(ctx context.Context, id string) (domain.Conversation, error) {
	return s.load(ctx, s.client, id)
}

// Update merges one exchange, retrying when another writer races on the key.
func (s *RedisStore) Update(ctx context.Context, id string, mentioned []string, rawMessage string, intent domain.Intent) error {
	key := s.key(id)

	txf := func(tx *redis.Tx) error {
		conv, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		next := conv.Merge(mentioned, rawMessage, intent)
		next.UpdatedAt = s.now()
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			time.Sleep(time.Duration(i) * time.Millisecond)
			continue
		}
		return fmt.Errorf("redis update failed: %w", err)
	}
	return fmt.Errorf("redis update failed: too much contention on %s", key)
}

// Clear deletes the conversation key.
func (s *RedisStore) Clear(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Len counts conversation keys with SCAN.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, s.key("*"), 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan failed: %w", err)
	}
	return n, nil
}

func (s *RedisStore) key(id string) string {
	return cache.Key(s.prefix, "session", id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, id string) (domain.Conversation, error) {
	data, err := c.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewConversation(id), nil
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("redis get failed: %w", err)
	}

	var conv domain.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return domain.Conversation{}, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	if conv.PreviousPhones == nil {
		conv.PreviousPhones = []string{}
	}
	conv.ID = id
	return conv, nil
}

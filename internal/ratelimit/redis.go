package ratelimit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/cache"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/observability"
)

// slidingWindow prunes entries at or before now-window, counts the rest and
// records the attempt only when under the limit. Returns 1 when admitted.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisLimiter keeps one sorted set of attempt timestamps per conversation so
// the budget is shared by every replica.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	prefix string
	logger *observability.Logger
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, cfg Config, prefix string, logger *observability.Logger) *RedisLimiter {
	if prefix == "" {
		prefix = cache.DefaultPrefix
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RedisLimiter{
		client: client,
		cfg:    cfg.withDefaults(),
		prefix: prefix,
		logger: logger,
	}
}

// Check admits or rejects the attempt atomically. Backend failures admit the
// request and log a warning.
func (l *RedisLimiter) Check(ctx context.Context, id string) error {
	now := l.cfg.Now().UnixMilli()

	admitted, err := slidingWindow.Run(ctx, l.client,
		[]string{l.key(id)},
		now, l.cfg.Window.Milliseconds(), l.cfg.Limit, uuid.NewString(),
	).Int()
	if err != nil {
		l.logger.Warn().Err(err).Str("conversation_id", id).Msg("rate limiter unavailable, admitting request")
		return nil
	}

	if admitted == 0 {
		return exceeded(id, l.cfg.Limit, l.cfg.Window)
	}
	return nil
}

// Reset deletes the conversation's window.
func (l *RedisLimiter) Reset(ctx context.Context, id string) error {
	if err := l.client.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Len counts tracked windows with SCAN.
func (l *RedisLimiter) Len(ctx context.Context) (int, error) {
	n := 0
	iter := l.client.Scan(ctx, 0, l.key("*"), 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan failed: %w", err)
	}
	return n, nil
}

func (l *RedisLimiter) key(id string) string {
	return cache.Key(l.prefix, "ratelimit", id)
}

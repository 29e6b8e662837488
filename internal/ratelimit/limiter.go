// Package ratelimit enforces a sliding-window request budget per conversation.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
)

const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute
)

// Limiter admits or rejects requests per conversation id.
type Limiter interface {
	// Check records the attempt when admitted. A rejected attempt is not
	// recorded and yields a rate_limit DomainError.
	Check(ctx context.Context, id string) error
	// Reset forgets every attempt for id.
	Reset(ctx context.Context, id string) error
	// Len returns the number of tracked conversations.
	Len(ctx context.Context) (int, error)
}

// Config holds the window parameters shared by every backend.
type Config struct {
	Limit  int
	Window time.Duration
	Now    func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func exceeded(id string, limit int, window time.Duration) error {
	return domain.RateLimitExceeded(
		fmt.Sprintf("conversation %s exceeded %d requests per %s", id, limit, window), nil)
}

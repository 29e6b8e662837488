package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
)

// MemoryStore keeps conversations in a bounded LRU with an idle TTL.
type MemoryStore struct {
	cache *expirable.LRU[string, domain.Conversation]
	locks stripedLock
	now   func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// WithMemoryTTL sets the idle TTL. Zero disables expiry.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.ttl = ttl
	}
}

// WithMaxConversations caps the number of retained conversations.
func WithMaxConversations(n int) MemoryOption {
	return func(o *memoryOptions) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// WithMemoryClock overrides the timestamp source for UpdatedAt.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		o.now = now
	}
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	o := memoryOptions{
		ttl:     DefaultTTL,
		maxSize: DefaultMaxConversations,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &MemoryStore{
		cache: expirable.NewLRU[string, domain.Conversation](o.maxSize, nil, o.ttl),
		now:   o.now,
	}
}

// Get returns a copy of the stored conversation. It never fails.
func (s *MemoryStore) Get(_ context.Context, id string) (domain.Conversation, error) {
	if conv, ok := s.cache.Get(id); ok {
		return conv.Clone(), nil
	}
	return domain.NewConversation(id), nil
}

// Update merges one exchange under the key's lock.
func (s *MemoryStore) Update(_ context.Context, id string, mentioned []string, rawMessage string, intent domain.Intent) error {
	unlock := s.locks.lock(id)
	defer unlock()

	conv, ok := s.cache.Get(id)
	if !ok {
		conv = domain.NewConversation(id)
	}

	next := conv.Merge(mentioned, rawMessage, intent)
	next.UpdatedAt = s.now()
	s.cache.Add(id, next)
	return nil
}

// Clear removes the conversation.
func (s *MemoryStore) Clear(_ context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	s.cache.Remove(id)
	return nil
}

// Len returns the number of live conversations.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	return s.cache.Len(), nil
}

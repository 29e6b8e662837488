// Package session keeps per-conversation memory: phones already discussed,
// the last query and accumulated preferences.
package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
)

const (
	// DefaultTTL is how long an idle conversation is retained.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxConversations bounds the in-memory store.
	DefaultMaxConversations = 10000
)

// Store is the conversation state backend. Update is an atomic
// read-modify-write per conversation id.
type Store interface {
	// Get returns the stored conversation, or a fresh one when absent.
	Get(ctx context.Context, id string) (domain.Conversation, error)
	// Update merges one exchange into the conversation.
	Update(ctx context.Context, id string, mentioned []string, rawMessage string, intent domain.Intent) error
	// Clear removes the conversation. Clearing an unknown id is not an error.
	Clear(ctx context.Context, id string) error
	// Len returns the number of live conversations.
	Len(ctx context.Context) (int, error)
}

// stripedLock serialises work per key without a lock per key.
type stripedLock struct {
	stripes [64]sync.Mutex
}

func (s *stripedLock) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &s.stripes[h.Sum32()%uint32(len(s.stripes))]
	mu.Lock()
	return mu.Unlock
}

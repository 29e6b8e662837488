package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const maxTrackedConversations = 100000

// MemoryLimiter keeps per-conversation timestamp windows in process. Windows
// idle for longer than the window length drop out of the LRU.
type MemoryLimiter struct {
	cfg     Config
	windows *expirable.LRU[string, []time.Time]
	stripes [64]sync.Mutex
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cfg = cfg.withDefaults()
	return &MemoryLimiter{
		cfg:     cfg,
		windows: expirable.NewLRU[string, []time.Time](maxTrackedConversations, nil, cfg.Window),
	}
}

// Check admits the request when fewer than Limit attempts fall inside the
// trailing window.
func (l *MemoryLimiter) Check(_ context.Context, id string) error {
	mu := l.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	now := l.cfg.Now()
	windowStart := now.Add(-l.cfg.Window)

	prev, _ := l.windows.Get(id)
	recent := make([]time.Time, 0, len(prev)+1)
	for _, ts := range prev {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.cfg.Limit {
		l.windows.Add(id, recent)
		return exceeded(id, l.cfg.Limit, l.cfg.Window)
	}

	l.windows.Add(id, append(recent, now))
	return nil
}

// Reset forgets the conversation's window.
func (l *MemoryLimiter) Reset(_ context.Context, id string) error {
	mu := l.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	l.windows.Remove(id)
	return nil
}

// Len returns the number of tracked conversations.
func (l *MemoryLimiter) Len(_ context.Context) (int, error) {
	return l.windows.Len(), nil
}

func (l *MemoryLimiter) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &l.stripes[h.Sum32()%uint32(len(l.stripes))]
}

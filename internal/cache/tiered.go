package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// Tiered reads through an in-process L1 to a shared L2. With an L2, L1 copies
// live for at most l1TTL. Without one, L1 keeps the caller's TTL.
type Tiered struct {
	l1    *Memory
	l2    Cache
	l1TTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewTiered combines l1 and l2. l2 may be nil, leaving an L1-only cache.
func NewTiered(l1 *Memory, l2 Cache, l1TTL time.Duration) *Tiered {
	return &Tiered{l1: l1, l2: l2, l1TTL: l1TTL}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if data, ok := t.l1.Get(ctx, key); ok {
		t.hits.Add(1)
		return data, true
	}
	if t.l2 != nil {
		if data, ok := t.l2.Get(ctx, key); ok {
			t.hits.Add(1)
			t.l1.Set(ctx, key, data, t.l1TTL)
			return data, true
		}
	}
	t.misses.Add(1)
	return nil, false
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if t.l2 == nil {
		t.l1.Set(ctx, key, value, ttl)
		return
	}
	l1TTL := ttl
	if t.l1TTL > 0 && t.l1TTL < ttl {
		l1TTL = t.l1TTL
	}
	t.l1.Set(ctx, key, value, l1TTL)
	t.l2.Set(ctx, key, value, ttl)
}

// Stats returns hit and miss counters.
func (t *Tiered) Stats() (hits, misses int64) {
	return t.hits.Load(), t.misses.Load()
}

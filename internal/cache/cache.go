// Package cache provides the injectable key/value cache used for hot lookups:
// an in-process L1, a Redis L2 and a tiered combination of the two.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cache stores opaque values with a per-entry time to live.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Key builds a deterministic cache key from parts.
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("tm:%s:%x", namespace, hash[:12])
}

// Fetch returns the cached value for key or calls load and caches its result.
// A nil result from load is returned as-is and not cached.
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (*T, error)) (*T, error) {
	if c != nil {
		if data, ok := c.Get(ctx, key); ok {
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				return &v, nil
			}
		}
	}

	v, err := load(ctx)
	if err != nil || v == nil {
		return v, err
	}

	if c != nil {
		if data, err := json.Marshal(v); err == nil {
			c.Set(ctx, key, data, ttl)
		}
	}
	return v, nil
}

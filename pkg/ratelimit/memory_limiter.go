package ratelimit

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryLimiter is the single-node fallback when Redis is not configured.
type MemoryLimiter struct {
	cache  *cache.Cache
	limit  int
	window time.Duration
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		cache:  cache.New(window, window),
		limit:  limit,
		window: window,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	for {
		if err := l.cache.Add(key, 1, l.window); err == nil {
			return 1 <= l.limit, nil
		}
		n, err := l.cache.IncrementInt(key, 1)
		if err == nil {
			return n <= l.limit, nil
		}
		// Entry expired between Add and IncrementInt; start a new window.
	}
}

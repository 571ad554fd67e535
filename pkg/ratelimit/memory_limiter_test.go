package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLimiterWindow(t *testing.T) {
	l := NewMemoryLimiter(2, 50*time.Millisecond)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "u1")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "u1")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "u1")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "u2")
	assert.True(t, ok, "keys are independent")

	time.Sleep(80 * time.Millisecond)
	ok, _ = l.Allow(ctx, "u1")
	assert.True(t, ok, "window resets")
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	l := NewMemoryLimiter(10, time.Minute)
	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow(context.Background(), "k"); ok {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(10), allowed)
}

// Package ratelimit counts requests per key over a fixed window.
package ratelimit

import "context"

type Limiter interface {
	// Allow records one hit for key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

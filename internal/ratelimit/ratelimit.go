// Package ratelimit throttles message sends per user or connection.
package ratelimit

import "context"

// Limiter decides whether the holder of key may perform one more action.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

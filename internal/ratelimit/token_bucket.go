package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucketLimiter is the in-process limiter used when no Redis is
// configured. Each key gets its own bucket.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	capacity float64
	rate     float64
	buckets  map[string]*bucket
	now      func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewTokenBucketLimiter allows capacity actions per interval, refilled continuously.
func NewTokenBucketLimiter(capacity int, interval time.Duration) *TokenBucketLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &TokenBucketLimiter{
		capacity: float64(capacity),
		rate:     float64(capacity) / interval.Seconds(),
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

func (l *TokenBucketLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastCheck: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	b.lastCheck = now
	if elapsed > 0 {
		b.tokens += elapsed * l.rate
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

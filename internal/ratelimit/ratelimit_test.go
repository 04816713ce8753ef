package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisFixedWindow(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := NewRedisFixedWindowLimiter(client, "test", 2, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "user:1"))
	assert.True(t, l.Allow(ctx, "user:1"))
	assert.False(t, l.Allow(ctx, "user:1"))
	assert.True(t, l.Allow(ctx, "user:2"), "keys are independent")
}

func TestRedisFixedWindowFailsOpen(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := NewRedisFixedWindowLimiter(client, "", 1, time.Minute)
	require.NoError(t, err)
	srv.Close()

	assert.True(t, l.Allow(context.Background(), "user:1"))
}

func TestRedisFixedWindowRejectsBadConfig(t *testing.T) {
	_, err := NewRedisFixedWindowLimiter(nil, "x", 1, time.Second)
	assert.Error(t, err)
	_, err = NewRedisFixedWindowLimiter(redis.NewClient(&redis.Options{}), "x", 0, time.Second)
	assert.Error(t, err)
}

func TestTokenBucketRefill(t *testing.T) {
	l := NewTokenBucketLimiter(2, time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "c1"))
	assert.True(t, l.Allow(ctx, "c1"))
	assert.False(t, l.Allow(ctx, "c1"))
	assert.True(t, l.Allow(ctx, "c2"))

	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.Allow(ctx, "c1"))
	assert.False(t, l.Allow(ctx, "c1"))
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerforge/console/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{Enabled: false},
	}

	client, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), KeyPrefix)
	cfg := ManualEvaluateRateLimit("welcome-subject")

	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, cfg.Limit, remaining)
	assert.NoError(t, limiter.Wait(context.Background(), cfg))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), KeyPrefix)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestLocker_Disabled(t *testing.T) {
	locker := NewLocker(Disabled(), KeyPrefix)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, TestLockKey("welcome-subject"), time.Minute)
	require.NoError(t, err)

	// Held in process until released
	_, err = locker.Acquire(ctx, TestLockKey("welcome-subject"), time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := locker.Acquire(ctx, TestLockKey("voucher-q3"), time.Minute)
	require.NoError(t, err)
	assert.NoError(t, other(ctx))

	assert.NoError(t, release(ctx))

	again, err := locker.Acquire(ctx, TestLockKey("welcome-subject"), time.Minute)
	require.NoError(t, err)

	// A stale release must not free the new holder
	assert.NoError(t, release(ctx))
	_, err = locker.Acquire(ctx, TestLockKey("welcome-subject"), time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	assert.NoError(t, again(ctx))
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{
			name:     "LatestEvaluationKey",
			fn:       func() string { return LatestEvaluationKey("welcome-subject") },
			expected: "abtest:evaluation:welcome-subject",
		},
		{
			name:     "TestLockKey",
			fn:       func() string { return TestLockKey("voucher-q3") },
			expected: "abtest:lock:voucher-q3",
		},
		{
			name:     "ManualEvaluateRateLimit",
			fn:       func() string { return ManualEvaluateRateLimit("voucher-q3").Key },
			expected: "evaluate:voucher-q3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.fn())
		})
	}
}

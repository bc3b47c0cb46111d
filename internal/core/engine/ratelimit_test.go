package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterWindow(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: NewMemoryRateLimitStore(),
		Limits: map[string]RateLimit{
			"registry.example": {RequestsPerWindow: 1, WindowDuration: time.Minute},
		},
		Clock: func() time.Time { return clock },
	}

	allowed, _, err := limiter.Allow(context.Background(), "registry.example")
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, limiter.Record(context.Background(), "registry.example"))

	allowed, wait, err := limiter.Allow(context.Background(), "registry.example")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, time.Minute, wait)

	clock = clock.Add(2 * time.Minute)
	allowed, _, err = limiter.Allow(context.Background(), "registry.example")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRateLimiterBackoff(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: NewMemoryRateLimitStore(),
		Clock: func() time.Time { return now },
	}

	require.NoError(t, limiter.Record429(context.Background(), "npm.corp.example", 30*time.Second))

	allowed, wait, err := limiter.Allow(context.Background(), "npm.corp.example")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 30*time.Second, wait)
}

func TestRateLimiterUnknownHostUnlimited(t *testing.T) {
	store := NewMemoryRateLimitStore()
	limiter := &RateLimiter{Store: store}

	for i := 0; i < 1000; i++ {
		require.NoError(t, limiter.Record(context.Background(), "nexus.corp.example"))
	}
	allowed, _, err := limiter.Allow(context.Background(), "nexus.corp.example")
	require.NoError(t, err)
	require.True(t, allowed)

	state, err := store.GetRateLimit(context.Background(), "nexus.corp.example")
	require.NoError(t, err)
	require.Nil(t, state)
}

func TestRateLimiterMargin(t *testing.T) {
	limiter := &RateLimiter{
		Store: NewMemoryRateLimitStore(),
		Limits: map[string]RateLimit{
			"registry.example": {RequestsPerWindow: 10, WindowDuration: time.Minute},
		},
		Clock: func() time.Time { return time.Now().UTC() },
	}

	limiter.ApplySafetyMargin(0.9)
	limit, ok := limiter.getLimit("registry.example")
	require.True(t, ok)
	require.Equal(t, 9, limit.RequestsPerWindow)
}

func TestRateLimiterOverrides(t *testing.T) {
	limiter := &RateLimiter{Store: NewMemoryRateLimitStore()}
	limiter.ApplyOverrides(map[string]int{"Nexus.Corp.Example": 5, "": 10, "crates.io": 0})

	limit, ok := limiter.getLimit("nexus.corp.example")
	require.True(t, ok)
	require.Equal(t, 5, limit.RequestsPerWindow)

	limit, ok = limiter.getLimit("crates.io")
	require.True(t, ok)
	require.Equal(t, DefaultLimits["crates.io"], limit)
}

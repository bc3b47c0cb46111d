package engine

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/pkgmeta/repometa/internal/core"
)

// RateLimiter enforces per-host request windows against registries.
type RateLimiter struct {
	Store  RateLimitStore
	Limits map[string]RateLimit
	Clock  func() time.Time
	Margin float64
}

// RateLimit represents a rate limit window.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// RateLimitStore stores rate limit state.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error
}

// DefaultLimits covers the public registries; internal hosts are unlimited
// unless configured.
var DefaultLimits = map[string]RateLimit{
	"repo1.maven.org":       {RequestsPerWindow: 600, WindowDuration: time.Minute},
	"repo.maven.apache.org": {RequestsPerWindow: 600, WindowDuration: time.Minute},
	"registry.npmjs.org":    {RequestsPerWindow: 300, WindowDuration: time.Minute},
	"pypi.org":              {RequestsPerWindow: 300, WindowDuration: time.Minute},
	"proxy.golang.org":      {RequestsPerWindow: 300, WindowDuration: time.Minute},
	"crates.io":             {RequestsPerWindow: 60, WindowDuration: time.Minute},
	"api.nuget.org":         {RequestsPerWindow: 300, WindowDuration: time.Minute},
	"rubygems.org":          {RequestsPerWindow: 300, WindowDuration: 5 * time.Minute},
	"repo.packagist.org":    {RequestsPerWindow: 300, WindowDuration: time.Minute},
}

// Allow checks if a request is allowed and returns wait duration if not.
func (r *RateLimiter) Allow(ctx context.Context, endpoint string) (bool, time.Duration, error) {
	if r == nil || r.Store == nil {
		return true, 0, nil
	}

	state, err := r.Store.GetRateLimit(ctx, endpoint)
	if err != nil {
		return true, 0, err
	}
	if state == nil {
		state = &core.RateLimitState{WindowStart: r.now()}
	}

	if state.BackoffUntil != nil && r.now().Before(*state.BackoffUntil) {
		return false, state.BackoffUntil.Sub(r.now()), nil
	}

	limit, ok := r.getLimit(endpoint)
	if !ok {
		return true, 0, nil
	}
	windowEnd := state.WindowStart.Add(limit.WindowDuration)
	if r.now().After(windowEnd) {
		state.RequestCount = 0
		state.WindowStart = r.now()
	}

	if state.RequestCount >= limit.RequestsPerWindow {
		return false, windowEnd.Sub(r.now()), nil
	}

	return true, 0, nil
}

// Record increments the request count for an endpoint.
func (r *RateLimiter) Record(ctx context.Context, endpoint string) error {
	if r == nil || r.Store == nil {
		return nil
	}
	limit, ok := r.getLimit(endpoint)
	if !ok {
		return nil
	}

	state, err := r.Store.GetRateLimit(ctx, endpoint)
	if err != nil {
		return err
	}
	if state == nil {
		state = &core.RateLimitState{WindowStart: r.now()}
	}

	if r.now().After(state.WindowStart.Add(limit.WindowDuration)) {
		state.RequestCount = 0
		state.WindowStart = r.now()
	}
	state.RequestCount++
	if state.WindowStart.IsZero() {
		state.WindowStart = r.now()
	}

	return r.Store.UpdateRateLimit(ctx, endpoint, state)
}

// Record429 applies a backoff window from a 429 response.
func (r *RateLimiter) Record429(ctx context.Context, endpoint string, retryAfter time.Duration) error {
	if r == nil || r.Store == nil {
		return nil
	}

	state, err := r.Store.GetRateLimit(ctx, endpoint)
	if err != nil {
		return err
	}
	if state == nil {
		state = &core.RateLimitState{WindowStart: r.now()}
	}

	now := r.now()
	state.Last429At = &now
	if retryAfter > 0 {
		until := now.Add(retryAfter)
		state.BackoffUntil = &until
	}

	return r.Store.UpdateRateLimit(ctx, endpoint, state)
}

// ApplyOverrides merges per-endpoint request overrides (per minute).
func (r *RateLimiter) ApplyOverrides(overrides map[string]int) {
	if r == nil || len(overrides) == 0 {
		return
	}

	if r.Limits == nil {
		r.Limits = make(map[string]RateLimit, len(DefaultLimits))
		for key, limit := range DefaultLimits {
			r.Limits[key] = limit
		}
	}

	for endpoint, value := range overrides {
		endpoint = strings.ToLower(strings.TrimSpace(endpoint))
		if endpoint == "" || value <= 0 {
			continue
		}
		r.Limits[endpoint] = RateLimit{
			RequestsPerWindow: value,
			WindowDuration:    time.Minute,
		}
	}
}

// ApplySafetyMargin adjusts the effective request limits by a ratio (0-1].
func (r *RateLimiter) ApplySafetyMargin(margin float64) {
	if r == nil {
		return
	}
	if margin <= 0 || margin > 1 {
		return
	}
	r.Margin = margin
}

// Limit returns the effective window for host after overrides and the
// safety margin. Hosts without a window are not limited.
func (r *RateLimiter) Limit(host string) (RateLimit, bool) {
	return r.getLimit(host)
}

func (r *RateLimiter) getLimit(endpoint string) (RateLimit, bool) {
	if r == nil {
		return RateLimit{}, false
	}

	limits := r.Limits
	if limits == nil {
		limits = DefaultLimits
	}

	limit, ok := limits[strings.ToLower(endpoint)]
	if !ok {
		return RateLimit{}, false
	}
	return r.applyMargin(limit), true
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func (r *RateLimiter) applyMargin(limit RateLimit) RateLimit {
	if r == nil || r.Margin <= 0 || r.Margin > 1 {
		return limit
	}
	adjusted := int(math.Floor(float64(limit.RequestsPerWindow) * r.Margin))
	if adjusted < 1 {
		adjusted = 1
	}
	limit.RequestsPerWindow = adjusted
	return limit
}

// MemoryRateLimitStore keeps rate limit state in process memory.
type MemoryRateLimitStore struct {
	mu    sync.Mutex
	state map[string]core.RateLimitState
}

// NewMemoryRateLimitStore creates an empty store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{state: make(map[string]core.RateLimitState)}
}

// GetRateLimit returns a copy of the endpoint state, or nil.
func (m *MemoryRateLimitStore) GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.state[endpoint]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// UpdateRateLimit stores a copy of state.
func (m *MemoryRateLimitStore) UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error {
	if state == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		m.state = make(map[string]core.RateLimitState)
	}
	m.state[endpoint] = *state
	return nil
}

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(config *Config) (*Limiter, *time.Time) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(config)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_DefaultLimit(t *testing.T) {
	l, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 3, DefaultWindow: time.Minute})
	defer l.Stop()

	for i := range 3 {
		allowed, info := l.Allow("1.2.3.4", "/sessions/abc", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := l.Allow("1.2.3.4", "/sessions/abc", "GET")
	assert.False(t, allowed)
	assert.Positive(t, info.RetryAfter)

	allowed, _ = l.Allow("5.6.7.8", "/sessions/abc", "GET")
	assert.True(t, allowed, "other clients have their own bucket")
}

func TestLimiter_Refill(t *testing.T) {
	l, now := newTestLimiter(&Config{Enabled: true, DefaultLimit: 60, DefaultWindow: time.Minute, Endpoints: []EndpointConfig{
		{Pattern: "/sessions", Method: "POST", Limit: 60, Window: time.Minute, Burst: 1},
	}})
	defer l.Stop()

	allowed, _ := l.Allow("c", "/sessions", "POST")
	require.True(t, allowed)
	allowed, _ = l.Allow("c", "/sessions", "POST")
	require.False(t, allowed)

	*now = now.Add(time.Second)
	allowed, _ = l.Allow("c", "/sessions", "POST")
	assert.True(t, allowed)
}

func TestLimiter_SharedBucketPerPattern(t *testing.T) {
	l, _ := newTestLimiter(&Config{Enabled: true, Endpoints: []EndpointConfig{
		{Pattern: "/sessions/*/questions/*/revise", Method: "POST", Limit: 2, Window: time.Hour},
	}})
	defer l.Stop()

	ok1, _ := l.Allow("c", "/sessions/a/questions/1/revise", "POST")
	ok2, _ := l.Allow("c", "/sessions/b/questions/2/revise", "POST")
	ok3, _ := l.Allow("c", "/sessions/c/questions/3/revise", "POST")
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok3)
}

func TestLimiter_Lists(t *testing.T) {
	l, _ := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})
	defer l.Stop()

	for range 5 {
		allowed, _ := l.Allow("10.0.0.1", "/x", "GET")
		assert.True(t, allowed)
	}
	allowed, _ := l.Allow("10.0.0.2", "/x", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(&Config{Enabled: false})
	defer l.Stop()
	for range 10 {
		allowed, _ := l.Allow("c", "/sessions", "POST")
		assert.True(t, allowed)
	}
}

func TestLimiter_EvictIdle(t *testing.T) {
	l, now := newTestLimiter(&Config{Enabled: true, DefaultLimit: 5, DefaultWindow: time.Minute, IdleTimeout: time.Minute})
	defer l.Stop()

	l.Allow("c", "/x", "GET")
	require.Len(t, l.buckets, 1)

	*now = now.Add(2 * time.Minute)
	l.evictIdle()
	assert.Empty(t, l.buckets)
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpoints()

	tests := []struct {
		path, method string
		want         string
	}{
		{"/sessions", "POST", "/sessions"},
		{"/sessions/abc/questions", "POST", "/sessions/*/questions"},
		{"/sessions/abc/questions/2/revise", "POST", "/sessions/*/questions/*/revise"},
		{"/sessions/abc", "DELETE", "/sessions/*"},
		{"/health", "GET", "/health"},
	}
	for _, tt := range tests {
		got := MatchEndpoint(tt.path, tt.method, configs)
		require.NotNil(t, got, tt.path)
		assert.Equal(t, tt.want, got.Pattern)
	}

	assert.Nil(t, MatchEndpoint("/sessions/abc", "GET", configs))
	assert.Nil(t, MatchEndpoint("/sessions/abc/questions/2", "POST", configs))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "42")
	t.Setenv("RATE_LIMIT_WHITELIST", "127.0.0.1, ::1")

	cfg := LoadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 42, cfg.DefaultLimit)
	assert.True(t, cfg.Whitelist["::1"])
	assert.NotEmpty(t, cfg.Endpoints)

	t.Setenv("RATE_LIMIT_ENABLED", "false")
	assert.False(t, LoadConfig().Enabled)
}

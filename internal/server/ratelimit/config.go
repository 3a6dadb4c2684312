package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig limits one route.
type EndpointConfig struct {
	Pattern string        // Path with "*" for a single segment, e.g. /sessions/*
	Method  string        // HTTP method
	Limit   int           // Requests per window
	Window  time.Duration // Refill window
	Burst   int           // Bucket capacity, defaults to Limit
}

// LoadConfig reads rate limiting settings from RATE_LIMIT_* variables.
func LoadConfig() *Config {
	if !envBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    envInt("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   envDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: envDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		Endpoints:       DefaultEndpoints(),
	}
}

// DefaultEndpoints returns the per-route limits. Generation routes call the
// model and are the strictest. Polling falls under the default limit.
func DefaultEndpoints() []EndpointConfig {
	return []EndpointConfig{
		{Pattern: "/sessions", Method: "POST", Limit: 20, Window: time.Hour, Burst: 5},
		{Pattern: "/sessions/*/questions", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Pattern: "/sessions/*/questions/*/revise", Method: "POST", Limit: 60, Window: time.Hour, Burst: 10},
		{Pattern: "/sessions/*", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
	}
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func parseList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result[item] = true
		}
	}
	return result
}

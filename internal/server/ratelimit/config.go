package ratelimit

import (
	"strings"
	"time"

	"github.com/jonathan/talent-match/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Path pattern; "*" matches one segment, a trailing "/" matches any suffix
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Trusted         map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewConfig builds the limiter configuration from the service settings.
func NewConfig(cfg config.RateLimitConfig) *Config {
	if !cfg.Enabled {
		return &Config{Enabled: false}
	}

	trusted := make(map[string]bool, len(cfg.TrustedClients))
	for _, ip := range cfg.TrustedClients {
		if ip = strings.TrimSpace(ip); ip != "" {
			trusted[ip] = true
		}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    cfg.DefaultLimit,
		DefaultWindow:   cfg.DefaultWindow,
		CleanupInterval: cfg.CleanupEvery,
		Trusted:         trusted,
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: model calls
		{Path: "/jobs/*/candidates/*/analysis", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/jobs/*/candidates", Method: "GET", Limit: 120, Window: time.Hour, Burst: 10},

		// Tier 2: writes that embed or schedule
		{Path: "/jobs", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/candidates", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/candidates/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/calls", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/jobs/*/candidates/*/bookmark", Method: "PUT", Limit: 300, Window: time.Minute, Burst: 30},
		{Path: "/jobs/*/candidates/*/bookmark", Method: "DELETE", Limit: 300, Window: time.Minute, Burst: 30},

		// Tier 3: reads use the default limit
		// Tier 4: health check is unlimited, see MatchEndpoint
	}
}

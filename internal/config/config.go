// Package config loads service configuration from an optional file, the environment and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. TALENT_MATCH_MATCHING_CONCURRENCY.
const EnvPrefix = "TALENT_MATCH"

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig    `mapstructure:"server"`
	DatabaseURL string          `mapstructure:"database_url"`
	RedisURL    string          `mapstructure:"redis_url"`
	Log         LogConfig       `mapstructure:"log"`
	LLM         LLMConfig       `mapstructure:"llm"`
	Matching    MatchingConfig  `mapstructure:"matching"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Resume      ResumeConfig    `mapstructure:"resume"`
	Voice       VoiceConfig     `mapstructure:"voice"`
	JWT         JWTConfig       `mapstructure:"jwt"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// LLMConfig selects the provider models and client-side request rate.
type LLMConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	AnalysisModel     string  `mapstructure:"analysis_model"`
	EmbeddingModel    string  `mapstructure:"embedding_model"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// MatchingConfig tunes the ranking orchestrator and the match analyzer.
type MatchingConfig struct {
	CandidatePoolCeiling int           `mapstructure:"candidate_pool_ceiling"`
	MinBatch             int           `mapstructure:"min_batch"`
	Concurrency          int           `mapstructure:"concurrency"`
	AnalysisTimeout      time.Duration `mapstructure:"analysis_timeout"`
	StalePendingAfter    time.Duration `mapstructure:"stale_pending_after"`
	JobCacheTTL          time.Duration `mapstructure:"job_cache_ttl"`
	EmbeddingCacheTTL    time.Duration `mapstructure:"embedding_cache_ttl"`
	SkillWeight          float64       `mapstructure:"skill_weight"`
	CulturalWeight       float64       `mapstructure:"cultural_weight"`
}

// SchedulerConfig tunes the outbound call admission loop.
type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	MaxInFlight  int           `mapstructure:"max_in_flight"`
	CallDuration time.Duration `mapstructure:"call_duration"`
	OrphanAfter  time.Duration `mapstructure:"orphan_after"`
}

type ResumeConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SigningSecret string        `mapstructure:"signing_secret"`
	URLExpiry     time.Duration `mapstructure:"url_expiry"`
	MaxBytes      int64         `mapstructure:"max_bytes"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
}

type VoiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	DefaultLimit   int           `mapstructure:"default_limit"`
	DefaultWindow  time.Duration `mapstructure:"default_window"`
	CleanupEvery   time.Duration `mapstructure:"cleanup_every"`
	TrustedClients []string      `mapstructure:"trusted_clients"`
}

// envAliases maps conventional unprefixed variables onto config keys.
var envAliases = map[string]string{
	"database_url":          "DATABASE_URL",
	"redis_url":             "REDIS_URL",
	"llm.api_key":           "GEMINI_API_KEY",
	"jwt.secret":            "JWT_SECRET",
	"jwt.expiration_hours":  "JWT_EXPIRATION_HOURS",
	"jwt.issuer":            "JWT_ISSUER",
	"resume.signing_secret": "RESUME_SIGNING_SECRET",
	"resume.base_url":       "RESUME_BASE_URL",
	"voice.api_key":         "VOICE_API_KEY",
	"voice.base_url":        "VOICE_BASE_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 300*time.Second)

	v.SetDefault("llm.analysis_model", "gemini-2.5-flash")
	v.SetDefault("llm.embedding_model", "text-embedding-004")
	v.SetDefault("llm.requests_per_second", 2.0)
	v.SetDefault("llm.burst", 3)

	v.SetDefault("matching.candidate_pool_ceiling", 50)
	v.SetDefault("matching.min_batch", 10)
	v.SetDefault("matching.concurrency", 3)
	v.SetDefault("matching.analysis_timeout", 3*time.Minute)
	v.SetDefault("matching.stale_pending_after", 15*time.Minute)
	v.SetDefault("matching.job_cache_ttl", 5*time.Second)
	v.SetDefault("matching.embedding_cache_ttl", 10*time.Minute)
	v.SetDefault("matching.skill_weight", 0.7)
	v.SetDefault("matching.cultural_weight", 0.3)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.tick_interval", time.Minute)
	v.SetDefault("scheduler.max_in_flight", 5)
	v.SetDefault("scheduler.call_duration", 10*time.Minute)
	v.SetDefault("scheduler.orphan_after", 5*time.Minute)

	v.SetDefault("resume.url_expiry", time.Hour)
	v.SetDefault("resume.max_bytes", 10<<20)
	v.SetDefault("resume.fetch_timeout", 30*time.Second)

	v.SetDefault("voice.timeout", 15*time.Second)

	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("jwt.leeway", 30*time.Second)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_limit", 1000)
	v.SetDefault("rate_limit.default_window", time.Minute)
	v.SetDefault("rate_limit.cleanup_every", 5*time.Minute)
}

// Load reads configuration. path may be empty, in which case only the
// environment and defaults are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values needed by every command.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required (set DATABASE_URL)")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}
	m := c.Matching
	if m.CandidatePoolCeiling < 1 {
		return fmt.Errorf("matching.candidate_pool_ceiling must be positive, got: %d", m.CandidatePoolCeiling)
	}
	if m.MinBatch < 1 {
		return fmt.Errorf("matching.min_batch must be positive, got: %d", m.MinBatch)
	}
	if m.Concurrency < 1 {
		return fmt.Errorf("matching.concurrency must be positive, got: %d", m.Concurrency)
	}
	if m.AnalysisTimeout <= 0 {
		return fmt.Errorf("matching.analysis_timeout must be positive")
	}
	if m.SkillWeight < 0 || m.CulturalWeight < 0 || m.SkillWeight+m.CulturalWeight == 0 {
		return fmt.Errorf("matching weights must be non-negative with a positive sum")
	}
	if c.Scheduler.MaxInFlight < 1 {
		return fmt.Errorf("scheduler.max_in_flight must be positive, got: %d", c.Scheduler.MaxInFlight)
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler.tick_interval must be positive")
	}
	return c.JWT.validate()
}

package config

import (
	"time"
)

// Config represents the complete application configuration. Values are
// layered as defaults, then the config file, then REPOMETA_* environment
// variables, then runtime overrides.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Store        StoreConfig        `mapstructure:"store"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Analyzer     AnalyzerConfig     `mapstructure:"analyzer"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Secret       SecretConfig       `mapstructure:"secret"`
	Repositories RepositoriesConfig `mapstructure:"repositories"`
	Admin        AdminConfig        `mapstructure:"admin"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Health       HealthConfig       `mapstructure:"health"`
	Debug        DebugConfig        `mapstructure:"debug"`

	RateLimits       map[string]int `mapstructure:"rate_limits"`
	RateLimitMargin  float64        `mapstructure:"rate_limit_margin"`
	RateLimitPersist bool           `mapstructure:"rate_limit_persist"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig sizes the result cache. Size 0 means unbounded.
type CacheConfig struct {
	TTL  time.Duration `mapstructure:"ttl"`
	Size int           `mapstructure:"size"`
}

// AnalyzerConfig applies to every registry call.
type AnalyzerConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// KafkaConfig configures the command consumer and result producer.
type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	Group       string   `mapstructure:"group"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	ClientID    string   `mapstructure:"client_id"`
}

// SecretConfig locates the key used to decrypt repository passwords.
// Key takes precedence over KeyFile.
type SecretConfig struct {
	Key     string `mapstructure:"key"`
	KeyFile string `mapstructure:"key_file"`
}

// Repository sources
const (
	RepositorySourceStore = "store"
	RepositorySourceFile  = "file"
)

// RepositoriesConfig selects where repository definitions come from.
// Source is "store" (libsql) or "file" (YAML at File).
type RepositoriesConfig struct {
	Source string `mapstructure:"source"`
	File   string `mapstructure:"file"`
}

// AdminConfig protects the admin endpoints. An empty token disables them.
type AdminConfig struct {
	Token string `mapstructure:"token"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

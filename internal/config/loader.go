// Package config provides centralized configuration management for repometa.
// Configuration is layered:
// Layer 1: built-in defaults
// Layer 2: config file (explicit path, XDG config dir, or ./config)
// Layer 3: REPOMETA_* environment variables and runtime overrides
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName names config, data and cache directories.
	AppName = "repometa"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "REPOMETA_"

	// keyDelimiter keeps dotted host names in rate_limits as single keys.
	keyDelimiter = "::"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Load loads configuration from the discovered config file.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", runtimeOverrides...)
}

// LoadFile loads configuration from path. An empty path searches the XDG
// config directory and ./config; a missing file there is not an error.
func LoadFile(ctx context.Context, path string, runtimeOverrides ...map[string]any) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	SetDefaults(v)

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		if dir := gfconfig.GetAppConfigDir(AppName); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	merged := v.AllSettings()

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if value := strings.TrimSpace(os.Getenv(EnvPrefix + "RATE_LIMIT_MARGIN")); value != "" {
		margin, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit margin: %w", err)
		}
		envOverrides["rate_limit_margin"] = margin
	}

	mergeInto(merged, envOverrides)
	for _, overrides := range runtimeOverrides {
		mergeInto(merged, overrides)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// SetDefaults registers built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	set := func(key string, value any) {
		v.SetDefault(strings.ReplaceAll(key, ".", keyDelimiter), value)
	}

	set("server.host", "localhost")
	set("server.port", 8080)
	set("server.read_timeout", "30s")
	set("server.write_timeout", "30s")
	set("server.idle_timeout", "120s")
	set("server.shutdown_timeout", "10s")

	set("logging.level", "info")
	set("logging.profile", "SIMPLE")

	set("store.driver", "libsql")
	set("store.path", "")
	set("store.url", "")
	set("store.auth_token", "")

	set("cache.ttl", "1h")
	set("cache.size", 0)

	set("analyzer.timeout", "10s")
	set("analyzer.user_agent", AppName)

	set("kafka.enabled", false)
	set("kafka.brokers", []string{})
	set("kafka.group", AppName)
	set("kafka.topic_prefix", "")
	set("kafka.client_id", AppName)

	set("secret.key", "")
	set("secret.key_file", "")

	set("repositories.source", "store")
	set("repositories.file", "")

	set("admin.token", "")

	set("rate_limit_margin", 0.9)
	set("rate_limit_persist", true)

	set("metrics.enabled", true)
	set("metrics.port", 9090)

	set("health.enabled", true)

	set("debug.enabled", false)
	set("debug.pprof_enabled", false)
}

// Validate rejects combinations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Repositories.Source {
	case RepositorySourceStore:
	case RepositorySourceFile:
		if strings.TrimSpace(c.Repositories.File) == "" {
			errs = append(errs, errors.New("repositories.file is required when repositories.source is file"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown repositories.source %q", c.Repositories.Source))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if c.Cache.Size < 0 {
		errs = append(errs, errors.New("cache.size must not be negative"))
	}
	if c.Analyzer.Timeout < 0 || (c.Analyzer.Timeout > 0 && c.Analyzer.Timeout < 10*time.Millisecond) {
		errs = append(errs, errors.New("analyzer.timeout must be at least 10ms"))
	}
	if c.RateLimitMargin < 0 || c.RateLimitMargin > 1 {
		errs = append(errs, errors.New("rate_limit_margin must be between 0 and 1"))
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
		}
		if strings.TrimSpace(c.Kafka.Group) == "" {
			errs = append(errs, errors.New("kafka.group is required when kafka is enabled"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	prefix := EnvPrefix

	return []EnvVarSpec{
		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		// Logging config
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		// Result cache
		{Name: prefix + "CACHE_TTL", Path: []string{"cache", "ttl"}, Type: EnvString},
		{Name: prefix + "CACHE_SIZE", Path: []string{"cache", "size"}, Type: EnvInt},

		// Registry calls
		{Name: prefix + "ANALYZER_TIMEOUT", Path: []string{"analyzer", "timeout"}, Type: EnvString},
		{Name: prefix + "ANALYZER_USER_AGENT", Path: []string{"analyzer", "user_agent"}, Type: EnvString},

		// Kafka
		{Name: prefix + "KAFKA_ENABLED", Path: []string{"kafka", "enabled"}, Type: EnvBool},
		{Name: prefix + "KAFKA_BROKERS", Path: []string{"kafka", "brokers"}, Type: EnvString},
		{Name: prefix + "KAFKA_GROUP", Path: []string{"kafka", "group"}, Type: EnvString},
		{Name: prefix + "KAFKA_TOPIC_PREFIX", Path: []string{"kafka", "topic_prefix"}, Type: EnvString},
		{Name: prefix + "KAFKA_CLIENT_ID", Path: []string{"kafka", "client_id"}, Type: EnvString},

		// Credential decryption
		{Name: prefix + "SECRET_KEY", Path: []string{"secret", "key"}, Type: EnvString},
		{Name: prefix + "SECRET_KEY_FILE", Path: []string{"secret", "key_file"}, Type: EnvString},

		// Repository source
		{Name: prefix + "REPOSITORIES_SOURCE", Path: []string{"repositories", "source"}, Type: EnvString},
		{Name: prefix + "REPOSITORIES_FILE", Path: []string{"repositories", "file"}, Type: EnvString},

		// Admin endpoints
		{Name: prefix + "ADMIN_TOKEN", Path: []string{"admin", "token"}, Type: EnvString},

		// Metrics config
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		// Health config
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		// Debug config
		{Name: prefix + "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},
		{Name: prefix + "DEBUG_PPROF_ENABLED", Path: []string{"debug", "pprof_enabled"}, Type: EnvBool},

		{Name: prefix + "RATE_LIMIT_PERSIST", Path: []string{"rate_limit_persist"}, Type: EnvBool},
	}
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(AppName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

// mergeInto deep-merges src into dst; src wins on conflicts.
func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		key = strings.ToLower(key)
		srcMap, srcIsMap := value.(map[string]any)
		if !srcIsMap {
			dst[key] = value
			continue
		}
		dstMap, dstIsMap := dst[key].(map[string]any)
		if !dstIsMap {
			dstMap = map[string]any{}
			dst[key] = dstMap
		}
		mergeInto(dstMap, srcMap)
	}
}

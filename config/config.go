// Package config provides configuration management for the client and CLI.
//
// Configuration is resolved in layers: built-in defaults, then an optional YAML
// file with ${VAR} and ${VAR:-default} expansion, then environment variables
// (a .env file in the working directory is loaded first when present).
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rainy/internal/retry"
)

// Config holds the application configuration
type Config struct {
	Providers  map[string]RawProviderConfig `yaml:"providers"`
	Defaults   DefaultsConfig               `yaml:"defaults"`
	Resilience ResilienceConfig             `yaml:"resilience"`
	RateLimit  RateLimitConfig              `yaml:"rate_limit"`
	Cache      CacheConfig                  `yaml:"cache"`
	Logging    LogConfig                    `yaml:"logging"`
	Metrics    MetricsConfig                `yaml:"metrics"`
	HTTP       HTTPConfig                   `yaml:"http"`
}

// RawProviderConfig is a provider entry as written in YAML. Resilience
// overrides are pointers so that unset fields fall back to the global values.
type RawProviderConfig struct {
	Type       string               `yaml:"type"`
	APIKey     string               `yaml:"api_key"`
	BaseURL    string               `yaml:"base_url"`
	Models     []string             `yaml:"models"`
	Resilience *RawResilienceConfig `yaml:"resilience"`
}

// RawResilienceConfig holds per-provider overrides
type RawResilienceConfig struct {
	Retry *RawRetryConfig `yaml:"retry"`
}

// RawRetryConfig holds optional per-provider retry overrides
type RawRetryConfig struct {
	MaxAttempts  *int           `yaml:"max_attempts"`
	BaseDelay    *time.Duration `yaml:"base_delay"`
	MaxDelay     *time.Duration `yaml:"max_delay"`
	JitterFactor *float64       `yaml:"jitter_factor"`
}

// DefaultsConfig selects what the CLI talks to when no flags are given
type DefaultsConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ResilienceConfig holds the global retry and circuit breaker settings
type ResilienceConfig struct {
	Retry          retry.Policy         `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// RateLimitConfig limits attempts per provider client
type RateLimitConfig struct {
	// RequestsPerMinute of 0 disables the limiter
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// CacheConfig selects the capability cache backend
type CacheConfig struct {
	// Type is "memory" or "redis"
	Type  string        `yaml:"type"`
	TTL   time.Duration `yaml:"ttl"`
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	// Format is "json", "text" or "pretty"
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// MetricsConfig toggles Prometheus instrumentation
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HTTPConfig shapes the shared transport. Timeouts are in seconds.
type HTTPConfig struct {
	Timeout               int  `yaml:"timeout"`
	ResponseHeaderTimeout int  `yaml:"response_header_timeout"`
	DisableCompression    bool `yaml:"disable_compression"`
}

// defaultConfigPaths are tried in order when Load is given no path
var defaultConfigPaths = []string{"config.yaml", "config/config.yaml"}

// Default returns the built-in configuration without reading files or the
// environment
func Default() *Config {
	return buildDefaultConfig()
}

// buildDefaultConfig returns the configuration used when nothing is set
func buildDefaultConfig() *Config {
	return &Config{
		Providers: map[string]RawProviderConfig{},
		Defaults: DefaultsConfig{
			Provider: "rainy",
		},
		Resilience: ResilienceConfig{
			Retry: retry.DefaultPolicy(),
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
		},
		Cache: CacheConfig{
			Type: "memory",
			TTL:  5 * time.Minute,
			Redis: RedisConfig{
				Key: "rainy:capabilities",
			},
		},
		Logging: LogConfig{
			Format: "pretty",
			Level:  "info",
		},
		HTTP: HTTPConfig{
			Timeout:               600,
			ResponseHeaderTimeout: 600,
		},
	}
}

// Load resolves the configuration. An empty path tries config.yaml and
// config/config.yaml; a missing default file is not an error, a missing
// explicit path is.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := buildDefaultConfig()

	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		expanded := expandString(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if cfg.Providers == nil {
			cfg.Providers = map[string]RawProviderConfig{}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		return data, nil
	}
	for _, p := range defaultConfigPaths {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", p, err)
		}
	}
	return nil, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. A variable that is unset
// or empty and has no default is left untouched so that callers can detect it.
func expandString(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		name, hasDefault, def := groups[1], groups[2] != "", groups[3]
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return match
	})
}

// applyEnvOverrides applies the RAINY_* and HTTP_* environment variables.
// Provider credentials are resolved by the providers package.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("RAINY_PROVIDER"); v != "" {
		cfg.Defaults.Provider = v
	}
	if v := os.Getenv("RAINY_MODEL"); v != "" {
		cfg.Defaults.Model = v
	}

	if err := envInt("RAINY_MAX_ATTEMPTS", &cfg.Resilience.Retry.MaxAttempts); err != nil {
		return err
	}
	if err := envDuration("RAINY_BASE_DELAY", &cfg.Resilience.Retry.BaseDelay); err != nil {
		return err
	}
	if err := envDuration("RAINY_MAX_DELAY", &cfg.Resilience.Retry.MaxDelay); err != nil {
		return err
	}
	if v := os.Getenv("RAINY_JITTER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RAINY_JITTER %q: %w", v, err)
		}
		cfg.Resilience.Retry.JitterFactor = f
	}
	if err := envBool("RAINY_CIRCUIT_BREAKER", &cfg.Resilience.CircuitBreaker.Enabled); err != nil {
		return err
	}
	if err := envInt("RAINY_RATE_LIMIT_RPM", &cfg.RateLimit.RequestsPerMinute); err != nil {
		return err
	}

	if v := os.Getenv("RAINY_REDIS_URL"); v != "" {
		cfg.Cache.Type = "redis"
		cfg.Cache.Redis.URL = v
	}
	if v := os.Getenv("RAINY_CACHE_TYPE"); v != "" {
		cfg.Cache.Type = v
	}

	if v := os.Getenv("RAINY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RAINY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if err := envBool("RAINY_METRICS_ENABLED", &cfg.Metrics.Enabled); err != nil {
		return err
	}

	if err := envInt("HTTP_TIMEOUT", &cfg.HTTP.Timeout); err != nil {
		return err
	}
	if err := envInt("HTTP_RESPONSE_HEADER_TIMEOUT", &cfg.HTTP.ResponseHeaderTimeout); err != nil {
		return err
	}
	return envBool("RAINY_HTTP_DISABLE_COMPRESSION", &cfg.HTTP.DisableCompression)
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

// envDuration accepts Go durations ("250ms") or a bare number of milliseconds
func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

// Validate checks the resolved configuration
func (c *Config) Validate() error {
	if err := c.Resilience.Retry.Validate(); err != nil {
		return fmt.Errorf("resilience: %w", err)
	}
	if cb := c.Resilience.CircuitBreaker; cb.Enabled && (cb.FailureThreshold < 1 || cb.Timeout <= 0) {
		return errors.New("resilience.circuit_breaker: failure_threshold must be >= 1 and timeout > 0")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return errors.New("rate_limit.requests_per_minute must be >= 0")
	}

	switch c.Cache.Type {
	case "", "memory":
	case "redis":
		if c.Cache.Redis.URL == "" {
			return errors.New("cache.redis.url is required when cache.type is redis")
		}
	default:
		return fmt.Errorf("cache.type must be memory or redis, got %q", c.Cache.Type)
	}

	switch c.Logging.Format {
	case "", "json", "text", "pretty":
	default:
		return fmt.Errorf("logging.format must be json, text or pretty, got %q", c.Logging.Format)
	}

	for name, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("providers.%s: type is required", name)
		}
	}
	return nil
}

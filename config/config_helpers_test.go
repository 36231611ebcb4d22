package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rainy/internal/retry"
)

// TestExpandString tests the expandString function with various scenarios
func TestExpandString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			envVars:  map[string]string{},
			expected: "",
		},
		{
			name:     "string without placeholders",
			input:    "simple-string",
			envVars:  map[string]string{},
			expected: "simple-string",
		},
		{
			name:     "simple variable expansion",
			input:    "${API_KEY}",
			envVars:  map[string]string{"API_KEY": "sk-12345"},
			expected: "sk-12345",
		},
		{
			name:     "variable in middle of string",
			input:    "prefix-${API_KEY}-suffix",
			envVars:  map[string]string{"API_KEY": "sk-12345"},
			expected: "prefix-sk-12345-suffix",
		},
		{
			name:     "multiple variables",
			input:    "${SCHEME}://${HOST}:${PORT}",
			envVars:  map[string]string{"SCHEME": "https", "HOST": "api.example.com", "PORT": "8080"},
			expected: "https://api.example.com:8080",
		},
		{
			name:     "variable with default value - env var exists",
			input:    "${API_KEY:-default-key}",
			envVars:  map[string]string{"API_KEY": "sk-real-key"},
			expected: "sk-real-key",
		},
		{
			name:     "variable with default value - env var missing",
			input:    "${API_KEY:-default-key}",
			envVars:  map[string]string{},
			expected: "default-key",
		},
		{
			name:     "variable with default value - env var empty",
			input:    "${API_KEY:-default-key}",
			envVars:  map[string]string{"API_KEY": ""},
			expected: "default-key",
		},
		{
			name:     "unresolved variable - no default",
			input:    "${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "${MISSING_VAR}",
		},
		{
			name:     "partially resolved string",
			input:    "${RESOLVED}-${UNRESOLVED}",
			envVars:  map[string]string{"RESOLVED": "value1"},
			expected: "value1-${UNRESOLVED}",
		},
		{
			name:     "mixed resolved and unresolved with defaults",
			input:    "${RESOLVED}:${UNRESOLVED:-fallback}:${MISSING}",
			envVars:  map[string]string{"RESOLVED": "value1"},
			expected: "value1:fallback:${MISSING}",
		},
		{
			name:     "default value with special characters",
			input:    "${API_KEY:-https://api.example.com/v1}",
			envVars:  map[string]string{},
			expected: "https://api.example.com/v1",
		},
		{
			name:     "default value with colon in it",
			input:    "${URL:-http://localhost:8080}",
			envVars:  map[string]string{},
			expected: "http://localhost:8080",
		},
		{
			name:     "complex real-world example",
			input:    "${BASE_URL:-https://api.openai.com}/v1/chat/completions",
			envVars:  map[string]string{},
			expected: "https://api.openai.com/v1/chat/completions",
		},
		{
			name:     "environment variable set to empty string (no default)",
			input:    "${EMPTY_VAR}",
			envVars:  map[string]string{"EMPTY_VAR": ""},
			expected: "${EMPTY_VAR}",
		},
		{
			name:     "empty default value - env var missing",
			input:    "${OPTIONAL_VAR:-}",
			envVars:  map[string]string{},
			expected: "",
		},
		{
			name:     "empty default value - env var set",
			input:    "${OPTIONAL_VAR:-}",
			envVars:  map[string]string{"OPTIONAL_VAR": "actual-value"},
			expected: "actual-value",
		},
		{
			name:     "empty default value - env var empty",
			input:    "${OPTIONAL_VAR:-}",
			envVars:  map[string]string{"OPTIONAL_VAR": ""},
			expected: "",
		},
		{
			name:     "api key pattern - not set should be empty",
			input:    "${RAINY_API_KEY:-}",
			envVars:  map[string]string{},
			expected: "",
		},
		{
			name:     "api key pattern - set to value",
			input:    "${RAINY_API_KEY:-}",
			envVars:  map[string]string{"RAINY_API_KEY": "ra-secret-key"},
			expected: "ra-secret-key",
		},
		{
			name:     "multiple placeholders some resolved some not",
			input:    "prefix-${VAR1}-${VAR2}-${VAR3}-suffix",
			envVars:  map[string]string{"VAR1": "a", "VAR3": "c"},
			expected: "prefix-a-${VAR2}-c-suffix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				_ = os.Setenv(k, v)
			}
			defer func() {
				for k := range tt.envVars {
					_ = os.Unsetenv(k)
				}
			}()

			result := expandString(tt.input)
			if result != tt.expected {
				t.Errorf("expandString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// TestApplyEnvOverrides tests the applyEnvOverrides function
func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "retry overrides",
			envVars: map[string]string{"RAINY_MAX_ATTEMPTS": "5", "RAINY_BASE_DELAY": "250ms", "RAINY_MAX_DELAY": "10000", "RAINY_JITTER": "0.5"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, retry.Policy{MaxAttempts: 5, BaseDelay: 250 * time.Millisecond, MaxDelay: 10 * time.Second, JitterFactor: 0.5}, cfg.Resilience.Retry)
			},
		},
		{
			name:    "redis url switches cache backend",
			envVars: map[string]string{"RAINY_REDIS_URL": "redis://localhost:6379/0"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "redis", cfg.Cache.Type)
				assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.Redis.URL)
			},
		},
		{
			name:    "bool overrides",
			envVars: map[string]string{"RAINY_METRICS_ENABLED": "true", "RAINY_CIRCUIT_BREAKER": "1"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Metrics.Enabled)
				assert.True(t, cfg.Resilience.CircuitBreaker.Enabled)
			},
		},
		{
			name:    "logging and defaults",
			envVars: map[string]string{"RAINY_LOG_FORMAT": "json", "RAINY_LOG_LEVEL": "debug", "RAINY_PROVIDER": "groq", "RAINY_MODEL": "llama-3.1-8b-instant", "RAINY_RATE_LIMIT_RPM": "60"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "groq", cfg.Defaults.Provider)
				assert.Equal(t, "llama-3.1-8b-instant", cfg.Defaults.Model)
				assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
			},
		},
		{
			name:    "HTTP overrides",
			envVars: map[string]string{"HTTP_TIMEOUT": "30", "HTTP_RESPONSE_HEADER_TIMEOUT": "60", "RAINY_HTTP_DISABLE_COMPRESSION": "true"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30, cfg.HTTP.Timeout)
				assert.Equal(t, 60, cfg.HTTP.ResponseHeaderTimeout)
				assert.True(t, cfg.HTTP.DisableCompression)
			},
		},
		{
			name:    "no env vars set preserves defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, retry.DefaultPolicy(), cfg.Resilience.Retry)
				assert.Equal(t, "memory", cfg.Cache.Type)
				assert.Equal(t, 600, cfg.HTTP.Timeout)
				assert.Equal(t, "rainy", cfg.Defaults.Provider)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := buildDefaultConfig()
			require.NoError(t, applyEnvOverrides(cfg))
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	for _, key := range []string{"RAINY_MAX_ATTEMPTS", "RAINY_BASE_DELAY", "RAINY_JITTER", "RAINY_METRICS_ENABLED", "HTTP_TIMEOUT", "RAINY_HTTP_DISABLE_COMPRESSION"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "not-a-value")
			err := applyEnvOverrides(buildDefaultConfig())
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

package providers

import (
	"maps"
	"os"
	"strings"

	"rainy/config"
)

// ProviderConfig holds the fully resolved provider configuration after merging
// global defaults with per-provider overrides.
type ProviderConfig struct {
	Type         string
	APIKey       string
	BaseURL      string
	Models       []string
	Resilience   config.ResilienceConfig
	RateLimitRPM int
}

// knownProviderEnvs maps well-known provider names to their environment variables.
// This list is the authoritative source for provider auto-discovery from env vars.
var knownProviderEnvs = []struct {
	name         string
	providerType string
	apiKeyEnv    string
	baseURLEnv   string
}{
	{"rainy", "rainy", "RAINY_API_KEY", "RAINY_BASE_URL"},
	{"openai", "openai", "OPENAI_API_KEY", "OPENAI_BASE_URL"},
	{"gemini", "gemini", "GEMINI_API_KEY", "GEMINI_BASE_URL"},
	{"groq", "groq", "GROQ_API_KEY", "GROQ_BASE_URL"},
	{"cerebras", "cerebras", "CEREBRAS_API_KEY", "CEREBRAS_BASE_URL"},
}

// ResolveProviders applies env var overrides to the configured provider map,
// filters out entries without credentials, and merges each entry with the
// global resilience and rate limit settings.
func ResolveProviders(cfg *config.Config) map[string]ProviderConfig {
	merged := applyProviderEnvVars(cfg.Providers)
	filtered := filterEmptyProviders(merged)
	return buildProviderConfigs(filtered, cfg.Resilience, cfg.RateLimit.RequestsPerMinute)
}

// applyProviderEnvVars overlays well-known provider env vars onto the raw YAML map.
// Env var values always win over YAML values for the same provider name.
func applyProviderEnvVars(raw map[string]config.RawProviderConfig) map[string]config.RawProviderConfig {
	result := make(map[string]config.RawProviderConfig, len(raw))
	maps.Copy(result, raw)

	for _, kp := range knownProviderEnvs {
		apiKey := os.Getenv(kp.apiKeyEnv)
		baseURL := os.Getenv(kp.baseURLEnv)

		if apiKey == "" && baseURL == "" {
			continue
		}

		existing, exists := result[kp.name]
		if exists {
			if apiKey != "" {
				existing.APIKey = apiKey
			}
			if baseURL != "" {
				existing.BaseURL = baseURL
			}
			result[kp.name] = existing
		} else {
			result[kp.name] = config.RawProviderConfig{
				Type:    kp.providerType,
				APIKey:  apiKey,
				BaseURL: baseURL,
			}
		}
	}

	return result
}

// filterEmptyProviders removes providers without usable credentials,
// including keys whose ${VAR} reference was never expanded.
func filterEmptyProviders(raw map[string]config.RawProviderConfig) map[string]config.RawProviderConfig {
	result := make(map[string]config.RawProviderConfig, len(raw))
	for name, p := range raw {
		if p.APIKey != "" && !strings.Contains(p.APIKey, "${") {
			result[name] = p
		}
	}
	return result
}

func buildProviderConfigs(raw map[string]config.RawProviderConfig, global config.ResilienceConfig, rpm int) map[string]ProviderConfig {
	result := make(map[string]ProviderConfig, len(raw))
	for name, r := range raw {
		pc := buildProviderConfig(r, global)
		pc.RateLimitRPM = rpm
		result[name] = pc
	}
	return result
}

// buildProviderConfig merges a single RawProviderConfig with the global ResilienceConfig.
// Non-nil fields in the raw config override the global defaults.
func buildProviderConfig(raw config.RawProviderConfig, global config.ResilienceConfig) ProviderConfig {
	resolved := ProviderConfig{
		Type:       raw.Type,
		APIKey:     raw.APIKey,
		BaseURL:    raw.BaseURL,
		Models:     raw.Models,
		Resilience: global,
	}

	if raw.Resilience == nil || raw.Resilience.Retry == nil {
		return resolved
	}

	r := raw.Resilience.Retry
	if r.MaxAttempts != nil {
		resolved.Resilience.Retry.MaxAttempts = *r.MaxAttempts
	}
	if r.BaseDelay != nil {
		resolved.Resilience.Retry.BaseDelay = *r.BaseDelay
	}
	if r.MaxDelay != nil {
		resolved.Resilience.Retry.MaxDelay = *r.MaxDelay
	}
	if r.JitterFactor != nil {
		resolved.Resilience.Retry.JitterFactor = *r.JitterFactor
	}

	return resolved
}

package core

import (
	"fmt"
	"strings"
)

// knownProviders are the identities a model prefix may name
var knownProviders = map[string]bool{
	ProviderOpenAI:   true,
	ProviderGemini:   true,
	ProviderGroq:     true,
	ProviderCerebras: true,
	ProviderRainy:    true,
}

// ModelSelector is a normalized routing selector.
// Model is always the raw upstream model ID (without provider prefix).
type ModelSelector struct {
	Model    string
	Provider string
}

// QualifiedModel returns "provider/model" when Provider is set, or only model otherwise.
func (s ModelSelector) QualifiedModel() string {
	if s.Provider == "" {
		return s.Model
	}
	return s.Provider + "/" + s.Model
}

// ParseModelSelector normalizes model/provider routing input.
//
// Accepted forms:
//   - model only: "gpt-4o"
//   - model with provider prefix: "groq/llama-3.3-70b-versatile"
//   - explicit provider field: provider="openai", model="gpt-4o"
//
// Only a known provider identity is treated as a prefix, so upstream IDs such as
// "meta-llama/llama-4-scout-17b-16e-instruct" pass through untouched.
// If provider is present in both places, values must match.
func ParseModelSelector(model, provider string) (ModelSelector, error) {
	model = strings.TrimSpace(model)
	provider = strings.ToLower(strings.TrimSpace(provider))

	if model == "" {
		return ModelSelector{}, NewValidationError("model", "is required")
	}

	if prefix, rest, ok := strings.Cut(model, "/"); ok {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		rest = strings.TrimSpace(rest)
		if knownProviders[prefix] && rest != "" {
			if provider != "" && provider != prefix {
				return ModelSelector{}, NewValidationError("provider",
					fmt.Sprintf("%q conflicts with model prefix %q", provider, prefix))
			}
			provider = prefix
			model = rest
		}
	}

	if provider != "" && !knownProviders[provider] {
		return ModelSelector{}, NewValidationError("provider", fmt.Sprintf("unknown provider %q", provider))
	}

	return ModelSelector{
		Model:    model,
		Provider: provider,
	}, nil
}

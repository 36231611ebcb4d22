// Package groq provides Groq API integration.
package groq

import (
	"rainy/internal/core"
	"rainy/internal/providers"
)

// Registration provides factory registration for the Groq provider.
var Registration = providers.Registration{
	Type: core.ProviderGroq,
	New:  New,
}

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
)

// New creates a new Groq provider.
func New(apiKey string, opts providers.ProviderOptions) (core.Provider, error) {
	return providers.NewCompatible(apiKey, providers.CompatibleConfig{
		Name:           core.ProviderGroq,
		DefaultBaseURL: defaultBaseURL,
	}, opts), nil
}

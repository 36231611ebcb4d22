// Package cerebras provides Cerebras inference API integration.
package cerebras

import (
	"strings"

	"rainy/internal/core"
	"rainy/internal/providers"
)

// Registration provides factory registration for the Cerebras provider.
var Registration = providers.Registration{
	Type: core.ProviderCerebras,
	New:  New,
}

const (
	defaultBaseURL = "https://api.cerebras.ai/v1"
	// modelPrefix is how the Rainy catalog names Cerebras-hosted models
	modelPrefix = "cerebras/"
)

// New creates a new Cerebras provider.
func New(apiKey string, opts providers.ProviderOptions) (core.Provider, error) {
	return providers.NewCompatible(apiKey, providers.CompatibleConfig{
		Name:           core.ProviderCerebras,
		DefaultBaseURL: defaultBaseURL,
		ChatBody:       chatRequestBody,
	}, opts), nil
}

// chatRequestBody drops the catalog prefix, which the upstream API does not know
func chatRequestBody(req *core.ChatRequest) any {
	body := providers.StripRouting(req)
	body.Model = strings.TrimPrefix(body.Model, modelPrefix)
	return body
}

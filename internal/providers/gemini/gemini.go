// Package gemini provides Google Gemini integration through its
// OpenAI-compatible endpoint.
package gemini

import (
	"strings"

	"rainy/internal/core"
	"rainy/internal/providers"
)

// Registration provides factory registration for the Gemini provider.
var Registration = providers.Registration{
	Type: core.ProviderGemini,
	New:  New,
}

const (
	// Gemini provides an OpenAI-compatible endpoint
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// New creates a new Gemini provider.
func New(apiKey string, opts providers.ProviderOptions) (core.Provider, error) {
	return providers.NewCompatible(apiKey, providers.CompatibleConfig{
		Name:            core.ProviderGemini,
		DefaultBaseURL:  defaultBaseURL,
		ChatBody:        chatRequestBody,
		NormalizeModels: normalizeModels,
	}, opts), nil
}

// chatBody carries the thinking configuration the way the compatibility
// layer expects it, under extra_body.google.
type chatBody struct {
	*core.ChatRequest
	ExtraBody *extraBody `json:"extra_body,omitempty"`
}

type extraBody struct {
	Google googleOptions `json:"google"`
}

type googleOptions struct {
	ThinkingConfig *core.ThinkingConfig `json:"thinking_config,omitempty"`
}

func chatRequestBody(req *core.ChatRequest) any {
	body := chatBody{ChatRequest: providers.StripRouting(req)}
	if req.ThinkingConfig != nil {
		body.ExtraBody = &extraBody{Google: googleOptions{ThinkingConfig: req.ThinkingConfig}}
	}
	return body
}

// normalizeModels strips the "models/" resource prefix from model IDs
func normalizeModels(resp *core.ModelsResponse) {
	for i := range resp.Data {
		resp.Data[i].ID = strings.TrimPrefix(resp.Data[i].ID, "models/")
		if resp.Data[i].OwnedBy == "" {
			resp.Data[i].OwnedBy = "google"
		}
	}
}

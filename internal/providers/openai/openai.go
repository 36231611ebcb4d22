// Package openai provides OpenAI API integration.
package openai

import (
	"net/http"
	"strings"

	"rainy/internal/core"
	"rainy/internal/providers"
)

// Registration provides factory registration for the OpenAI provider.
var Registration = providers.Registration{
	Type: core.ProviderOpenAI,
	New:  New,
}

const (
	defaultBaseURL = "https://api.openai.com/v1"
)

// New creates a new OpenAI provider.
func New(apiKey string, opts providers.ProviderOptions) (core.Provider, error) {
	return newProvider(apiKey, opts), nil
}

func newProvider(apiKey string, opts providers.ProviderOptions) *providers.Compatible {
	return providers.NewCompatible(apiKey, providers.CompatibleConfig{
		Name:           core.ProviderOpenAI,
		DefaultBaseURL: defaultBaseURL,
		ChatBody:       chatRequestBody,
		ExtraHeaders:   setClientRequestID,
	}, opts)
}

// setClientRequestID forwards the request ID using OpenAI's X-Client-Request-Id header.
// OpenAI requires ASCII-only characters and max 512 bytes, otherwise returns 400.
func setClientRequestID(req *http.Request) {
	if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
		req.Header.Set("X-Client-Request-Id", requestID)
	}
}

// isValidClientRequestID checks if the request ID is valid for OpenAI's X-Client-Request-Id header.
func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}

// isOSeriesModel reports whether the model is an OpenAI o-series model
// (o1, o3, o4) that requires max_completion_tokens instead of max_tokens
// and does not support the temperature parameter.
func isOSeriesModel(model string) bool {
	m := strings.ToLower(model)
	return len(m) >= 2 && m[0] == 'o' && m[1] >= '0' && m[1] <= '9'
}

// oSeriesChatRequest is the JSON body sent to OpenAI for o-series models.
type oSeriesChatRequest struct {
	Model               string               `json:"model"`
	Messages            []core.Message       `json:"messages"`
	Stream              bool                 `json:"stream,omitempty"`
	StreamOptions       *core.StreamOptions  `json:"stream_options,omitempty"`
	MaxCompletionTokens *int                 `json:"max_completion_tokens,omitempty"`
	Stop                []string             `json:"stop,omitempty"`
	User                string               `json:"user,omitempty"`
	N                   *int                 `json:"n,omitempty"`
	ResponseFormat      *core.ResponseFormat `json:"response_format,omitempty"`
	Tools               []core.Tool          `json:"tools,omitempty"`
}

// adaptForOSeries maps max_tokens to max_completion_tokens and drops the
// sampling parameters reasoning models reject.
func adaptForOSeries(req *core.ChatRequest) *oSeriesChatRequest {
	return &oSeriesChatRequest{
		Model:               req.Model,
		Messages:            req.Messages,
		Stream:              req.Stream,
		StreamOptions:       req.StreamOptions,
		MaxCompletionTokens: req.MaxTokens,
		Stop:                req.Stop,
		User:                req.User,
		N:                   req.N,
		ResponseFormat:      req.ResponseFormat,
		Tools:               req.Tools,
	}
}

// chatRequestBody returns the appropriate request body for the model.
func chatRequestBody(req *core.ChatRequest) any {
	if isOSeriesModel(req.Model) {
		return adaptForOSeries(req)
	}
	return providers.StripRouting(req)
}

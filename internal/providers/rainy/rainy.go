// Package rainy provides the Rainy API connector: OpenAI-compatible chat
// completions routed to any upstream model, plus the account, billing and
// capability endpoints.
package rainy

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"

	"rainy/internal/cache"
	"rainy/internal/core"
	"rainy/internal/llmclient"
	"rainy/internal/providers"
	"rainy/internal/version"
)

// Registration provides factory registration for the Rainy provider.
var Registration = providers.Registration{
	Type: core.ProviderRainy,
	New:  New,
}

const (
	// DefaultBaseURL is the public Rainy API host
	DefaultBaseURL = "https://rainy-api-v2-179843975974.us-west1.run.app"
	apiPrefix      = "/api/v1"
	keyPrefix      = "ra-"
)

// Key and URL validation codes
const (
	CodeEmptyAPIKey         = "EMPTY_API_KEY"
	CodeInvalidAPIKeyFormat = "INVALID_API_KEY_FORMAT"
	CodeInvalidBaseURL      = "INVALID_BASE_URL"
	CodeFeatureNotAvailable = "FEATURE_NOT_AVAILABLE"
)

// Provider implements core.Provider for the Rainy API
type Provider struct {
	*providers.Compatible
	apiKey string
	caps   *cache.Loader
	// lastTier is the most recent tier the server confirmed
	lastTier atomic.Value
}

// New creates a new Rainy provider. The key must start with "ra-" and a
// custom base URL must be an absolute http(s) URL.
func New(apiKey string, opts providers.ProviderOptions) (core.Provider, error) {
	return NewProvider(apiKey, opts)
}

// NewProvider is New returning the concrete type, for the account endpoints
func NewProvider(apiKey string, opts providers.ProviderOptions) (*Provider, error) {
	if err := ValidateAPIKey(apiKey); err != nil {
		return nil, err
	}
	base := DefaultBaseURL
	if opts.BaseURL != "" {
		base = opts.BaseURL
	}
	apiURL, err := apiBaseURL(base)
	if err != nil {
		return nil, err
	}
	opts.BaseURL = apiURL
	if opts.UserAgent == "" {
		opts.UserAgent = version.UserAgent()
	}

	p := &Provider{apiKey: apiKey}
	p.Compatible = providers.NewCompatible(apiKey, providers.CompatibleConfig{
		Name:           core.ProviderRainy,
		DefaultBaseURL: apiURL,
		ChatBody:       chatRequestBody,
	}, opts)
	return p, nil
}

// ValidateAPIKey checks the shape of a Rainy API key without contacting the API
func ValidateAPIKey(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return validationError(CodeEmptyAPIKey, "API key cannot be empty")
	}
	if !strings.HasPrefix(apiKey, keyPrefix) {
		return validationError(CodeInvalidAPIKeyFormat, "API key must start with 'ra-'")
	}
	return nil
}

// apiBaseURL validates a host URL and appends the API prefix
func apiBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", validationError(CodeInvalidBaseURL, "invalid base URL: "+raw)
	}
	base := strings.TrimRight(u.String(), "/")
	if !strings.HasSuffix(base, apiPrefix) {
		base += apiPrefix
	}
	return base, nil
}

func validationError(code, message string) *core.ClassifiedError {
	ce := core.NewClassifiedError(core.KindClientError, false, 0, message, nil, nil)
	ce.Provider = core.ProviderRainy
	ce.Code = code
	return ce
}

// SetBaseURL points the provider at another host. Invalid URLs are ignored.
func (p *Provider) SetBaseURL(raw string) {
	if u, err := apiBaseURL(raw); err == nil {
		p.Compatible.SetBaseURL(u)
	}
}

// SetCapabilityCache makes Capabilities read through l
func (p *Provider) SetCapabilityCache(l *cache.Loader) {
	p.caps = l
}

// chatRequestBody sends the request as is; the Rainy API understands the
// provider and thinking fields.
func chatRequestBody(req *core.ChatRequest) any {
	return req
}

// ListModels flattens AvailableModels into the OpenAI list shape
func (p *Provider) ListModels(ctx context.Context) (*core.ModelsResponse, error) {
	avail, err := p.AvailableModels(ctx)
	if err != nil {
		return nil, err
	}
	resp := &core.ModelsResponse{Object: "list"}
	owners := make([]string, 0, len(avail.Providers))
	for owner := range avail.Providers {
		owners = append(owners, owner)
	}
	slices.Sort(owners)
	for _, owner := range owners {
		for _, id := range avail.Providers[owner] {
			resp.Data = append(resp.Data, core.Model{ID: id, Object: "model", OwnedBy: owner})
		}
	}
	return resp, nil
}

func (p *Provider) get(ctx context.Context, endpoint, operation string, result any) error {
	return p.Client().Do(ctx, llmclient.Request{
		Method:    http.MethodGet,
		Endpoint:  endpoint,
		Operation: operation,
	}, result)
}

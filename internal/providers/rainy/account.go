package rainy

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"rainy/internal/catalog"
	"rainy/internal/core"
	"rainy/internal/llmclient"
)

// Health returns the basic health of the API
func (p *Provider) Health(ctx context.Context) (*HealthStatus, error) {
	var h HealthStatus
	if err := p.get(ctx, "/health", "health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// DetailedHealth also reports the state of the API's dependencies
func (p *Provider) DetailedHealth(ctx context.Context) (*HealthStatus, error) {
	var h HealthStatus
	if err := p.get(ctx, "/health?detailed=true", "health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// UserAccount returns the account that owns the API key
func (p *Provider) UserAccount(ctx context.Context) (*User, error) {
	var u User
	if err := p.get(ctx, "/users/account", "user_account", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateAPIKey creates a key; expiresInDays <= 0 creates a key that never expires
func (p *Provider) CreateAPIKey(ctx context.Context, description string, expiresInDays int) (*APIKey, error) {
	body := createKeyRequest{Description: description}
	if expiresInDays > 0 {
		body.ExpiresInDays = &expiresInDays
	}
	var key APIKey
	err := p.Client().Do(ctx, llmclient.Request{
		Method:    http.MethodPost,
		Endpoint:  "/keys",
		Body:      body,
		Operation: "create_api_key",
	}, &key)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// ListAPIKeys returns every key of the account
func (p *Provider) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	var resp listKeysResponse
	if err := p.get(ctx, "/keys", "list_api_keys", &resp); err != nil {
		return nil, err
	}
	return resp.APIKeys, nil
}

// UpdateAPIKey changes the description or active flag of a key
func (p *Provider) UpdateAPIKey(ctx context.Context, id string, update APIKeyUpdate) (*APIKey, error) {
	var key APIKey
	err := p.Client().Do(ctx, llmclient.Request{
		Method:    http.MethodPatch,
		Endpoint:  "/keys/" + url.PathEscape(id),
		Body:      update,
		Operation: "update_api_key",
	}, &key)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// DeleteAPIKey revokes a key
func (p *Provider) DeleteAPIKey(ctx context.Context, id string) error {
	return p.Client().Do(ctx, llmclient.Request{
		Method:    http.MethodDelete,
		Endpoint:  "/keys/" + url.PathEscape(id),
		Operation: "delete_api_key",
	}, nil)
}

func withDays(endpoint string, days int) string {
	if days <= 0 {
		return endpoint
	}
	return endpoint + "?days=" + strconv.Itoa(days)
}

// UsageStats returns usage over the last days; days <= 0 uses the server default
func (p *Provider) UsageStats(ctx context.Context, days int) (*UsageStats, error) {
	var stats UsageStats
	if err := p.get(ctx, withDays("/usage/stats", days), "usage_stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// CreditInfo returns the credit balance; days <= 0 uses the server default
func (p *Provider) CreditInfo(ctx context.Context, days int) (*CreditInfo, error) {
	var resp creditsResponse
	if err := p.get(ctx, withDays("/usage/credits", days), "credit_info", &resp); err != nil {
		return nil, err
	}
	return &resp.Credits, nil
}

// AvailableModels lists the models the API routes to, grouped by provider
func (p *Provider) AvailableModels(ctx context.Context) (*AvailableModels, error) {
	var models AvailableModels
	if err := p.get(ctx, "/models", "list_models", &models); err != nil {
		return nil, err
	}
	return &models, nil
}

// CoworkCapabilities fetches the capabilities of the API key's tier
func (p *Provider) CoworkCapabilities(ctx context.Context) (*catalog.Capabilities, error) {
	var caps catalog.Capabilities
	if err := p.get(ctx, "/cowork/capabilities", "cowork_capabilities", &caps); err != nil {
		return nil, err
	}
	caps.IsValid = true
	if caps.Tier == "" {
		caps.Tier = catalog.TierFree
	}
	p.lastTier.Store(caps.Tier)
	return &caps, nil
}

// CoworkModels lists only the models of the key's plan
func (p *Provider) CoworkModels(ctx context.Context) (*CoworkModels, error) {
	var models CoworkModels
	if err := p.get(ctx, "/cowork/models", "cowork_models", &models); err != nil {
		return nil, err
	}
	return &models, nil
}

// Capabilities returns the key's capabilities, read through the capability
// cache when one is set. When the API cannot be reached the last confirmed
// tier is downgraded to its offline set; the fetch error is returned with it.
func (p *Provider) Capabilities(ctx context.Context) (*catalog.Capabilities, error) {
	var (
		caps *catalog.Capabilities
		err  error
	)
	if p.caps != nil {
		caps, err = p.caps.GetOrLoad(ctx, p.apiKey, p.CoworkCapabilities)
	} else {
		caps, err = p.CoworkCapabilities(ctx)
	}
	if err == nil {
		return caps, nil
	}
	tier, _ := p.lastTier.Load().(catalog.Tier)
	return catalog.OfflineCapabilities(tier), err
}

// Research runs web research on a topic. Tiers without the research feature
// get a client error with code FEATURE_NOT_AVAILABLE.
func (p *Provider) Research(ctx context.Context, req *ResearchRequest) (*ResearchResponse, error) {
	if req == nil || req.Topic == "" {
		return nil, core.NewValidationError("topic", "is required")
	}
	var resp ResearchResponse
	err := p.Client().Do(ctx, llmclient.Request{
		Method:    http.MethodPost,
		Endpoint:  "/agents/research",
		Body:      req,
		Operation: "research",
	}, &resp)
	if err != nil {
		if ce, ok := core.AsClassified(err); ok && ce.RawStatus == http.StatusForbidden {
			fe := validationError(CodeFeatureNotAvailable, "Research feature requires a valid subscription")
			fe.RawStatus = http.StatusForbidden
			fe.Err = err
			return nil, fe
		}
		return nil, err
	}
	return &resp, nil
}

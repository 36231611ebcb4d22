package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"rainy/internal/catalog"
	"rainy/internal/core"
)

// ErrNoProviders is returned when the router is used without any provider.
var ErrNoProviders = errors.New("no providers configured: set an API key such as RAINY_API_KEY")

// Router routes requests to the configured provider that serves a model.
// Resolution order: an explicit provider (request field or "provider/model"
// prefix), then the catalog's owner of the model, then the fallback provider.
type Router struct {
	providers map[string]core.Provider
	fallback  string
	logger    *slog.Logger
}

// NewRouter creates a router over providers keyed by instance name. fallback
// names the provider used for models no other provider claims; it may be
// empty.
func NewRouter(providers map[string]core.Provider, fallback string, logger *slog.Logger) (*Router, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if fallback != "" {
		if _, ok := providers[fallback]; !ok {
			return nil, fmt.Errorf("fallback provider %q is not configured", fallback)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{providers: providers, fallback: fallback, logger: logger}, nil
}

// Name implements core.Provider
func (r *Router) Name() string {
	return "router"
}

// Providers returns the configured provider names, sorted
func (r *Router) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Provider returns the provider configured under name
func (r *Router) Provider(name string) (core.Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Resolve picks the provider for req and returns the request to send to it.
// The caller's request is never modified.
func (r *Router) Resolve(req *core.ChatRequest) (core.Provider, *core.ChatRequest, error) {
	sel, err := core.ParseModelSelector(req.Model, req.Provider)
	if err != nil {
		return nil, nil, err
	}

	name := sel.Provider
	if name == "" {
		if owner, ok := catalog.ProviderForModel(sel.Model); ok {
			if _, configured := r.providers[owner]; configured {
				name = owner
			}
		}
	}
	if name != "" {
		if p, ok := r.providers[name]; ok {
			if name == core.ProviderRainy {
				return p, req, nil
			}
			routed := *req
			routed.Model = sel.Model
			routed.Provider = ""
			return p, &routed, nil
		}
	}

	// The Rainy API routes every catalog model itself
	if r.fallback != "" {
		return r.providers[r.fallback], req, nil
	}
	return nil, nil, core.NewValidationError("model", fmt.Sprintf("no configured provider serves %q", req.Model))
}

// ChatCompletion routes the request to the appropriate provider.
func (r *Router) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, *core.ResponseMetadata, error) {
	p, routed, err := r.Resolve(req)
	if err != nil {
		return nil, nil, err
	}
	return p.ChatCompletion(ctx, routed)
}

// StreamChatCompletion routes the streaming request to the appropriate provider.
func (r *Router) StreamChatCompletion(ctx context.Context, req *core.ChatRequest) (core.ChatStream, error) {
	p, routed, err := r.Resolve(req)
	if err != nil {
		return nil, err
	}
	return p.StreamChatCompletion(ctx, routed)
}

// ListModels merges the model lists of every provider. Providers that fail
// are logged and skipped; an error is returned only if all of them fail.
func (r *Router) ListModels(ctx context.Context) (*core.ModelsResponse, error) {
	out := &core.ModelsResponse{Object: "list"}
	var errs []error
	for _, name := range r.Providers() {
		resp, err := r.providers[name].ListModels(ctx)
		if err != nil {
			r.logger.Warn("failed to list models", "provider", name, "error", err)
			errs = append(errs, err)
			continue
		}
		out.Data = append(out.Data, resp.Data...)
	}
	if len(errs) == len(r.providers) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

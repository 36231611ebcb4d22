package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"rainy/config"
	"rainy/internal/cache"
	"rainy/internal/core"
)

// InitResult holds the initialized providers and the resources to release.
type InitResult struct {
	Router  *Router
	Cache   cache.Cache
	Loader  *cache.Loader
	Factory *ProviderFactory
}

// Close releases the capability cache. Safe to call multiple times.
func (r *InitResult) Close() error {
	if r.Cache == nil {
		return nil
	}
	err := r.Cache.Close()
	r.Cache = nil
	return err
}

// capabilityCached is implemented by connectors that read capabilities
// through the shared cache
type capabilityCached interface {
	SetCapabilityCache(l *cache.Loader)
}

// Init creates the capability cache, every configured provider and the router.
//
// Providers that fail to construct are logged and skipped; Init fails only
// when none could be created. The caller must call InitResult.Close.
func Init(ctx context.Context, cfg *config.Config, factory *ProviderFactory, logger *slog.Logger) (*InitResult, error) {
	if factory == nil {
		return nil, errors.New("provider factory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	capCache, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	loader := cache.NewLoader(capCache, logger)

	resolved := ResolveProviders(cfg)
	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}
	slices.Sort(names)

	created := make(map[string]core.Provider, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			_ = capCache.Close()
			return nil, err
		}
		pCfg := resolved[name]
		p, err := factory.Create(pCfg)
		if err != nil {
			logger.Error("failed to initialize provider", "name", name, "type", pCfg.Type, "error", err)
			continue
		}
		if cc, ok := p.(capabilityCached); ok {
			cc.SetCapabilityCache(loader)
		}
		created[name] = newNamedProvider(p, name)
		logger.Info("provider initialized", "name", name, "type", pCfg.Type)
	}
	if len(created) == 0 {
		_ = capCache.Close()
		return nil, ErrNoProviders
	}

	fallback := cfg.Defaults.Provider
	if _, ok := created[fallback]; !ok {
		fallback = ""
	}
	router, err := NewRouter(created, fallback, logger)
	if err != nil {
		_ = capCache.Close()
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	return &InitResult{
		Router:  router,
		Cache:   capCache,
		Loader:  loader,
		Factory: factory,
	}, nil
}

// Package providers provides a factory for creating provider instances.
package providers

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"rainy/internal/core"
	"rainy/internal/llmclient"
	"rainy/internal/retry"
)

// ProviderOptions carries the resilience and observability settings every
// connector passes to its llmclient.Client.
type ProviderOptions struct {
	// BaseURL overrides the connector's default endpoint when set
	BaseURL        string
	Retry          retry.Policy
	CircuitBreaker *llmclient.CircuitBreakerConfig
	RateLimitRPM   int
	UserAgent      string
	Hooks          llmclient.Hooks
	Logger         *slog.Logger
	// Doer replaces the pooled HTTP client, mostly for tests
	Doer llmclient.Doer
}

// ClientConfig returns the llmclient configuration for a connector.
// defaultBaseURL is used unless o.BaseURL is set.
func (o ProviderOptions) ClientConfig(providerName, defaultBaseURL string) llmclient.Config {
	baseURL := defaultBaseURL
	if o.BaseURL != "" {
		baseURL = o.BaseURL
	}
	return llmclient.Config{
		ProviderName:   providerName,
		BaseURL:        baseURL,
		Retry:          o.Retry,
		CircuitBreaker: o.CircuitBreaker,
		RateLimitRPM:   o.RateLimitRPM,
		UserAgent:      o.UserAgent,
	}
}

// ClientOptions returns the llmclient options implied by o
func (o ProviderOptions) ClientOptions() []llmclient.Option {
	opts := []llmclient.Option{llmclient.WithHooks(o.Hooks)}
	if o.Logger != nil {
		opts = append(opts, llmclient.WithLogger(o.Logger))
	}
	if o.Doer != nil {
		opts = append(opts, llmclient.WithDoer(o.Doer))
	}
	return opts
}

// ProviderConstructor creates a provider from an API key and options
type ProviderConstructor func(apiKey string, opts ProviderOptions) (core.Provider, error)

// Registration ties a provider type to its constructor
type Registration struct {
	Type string
	New  ProviderConstructor
}

// ProviderFactory creates providers from resolved configuration
type ProviderFactory struct {
	mu           sync.RWMutex
	constructors map[string]ProviderConstructor
	hooks        llmclient.Hooks
	logger       *slog.Logger
	doer         llmclient.Doer
	userAgent    string
}

// NewProviderFactory creates an empty factory
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{
		constructors: make(map[string]ProviderConstructor),
	}
}

// Add registers a provider by its Registration
func (f *ProviderFactory) Add(reg Registration) {
	f.Register(reg.Type, reg.New)
}

// Register registers a constructor for providerType, replacing any previous one
func (f *ProviderFactory) Register(providerType string, constructor ProviderConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[providerType] = constructor
}

// SetHooks sets the observability hooks given to every provider created afterwards
func (f *ProviderFactory) SetHooks(hooks llmclient.Hooks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = hooks
}

// SetLogger sets the logger given to every provider created afterwards
func (f *ProviderFactory) SetLogger(logger *slog.Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logger = logger
}

// SetDoer replaces the HTTP transport of every provider created afterwards
func (f *ProviderFactory) SetDoer(doer llmclient.Doer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doer = doer
}

// SetUserAgent sets the User-Agent sent by every provider created afterwards
func (f *ProviderFactory) SetUserAgent(ua string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userAgent = ua
}

// Create instantiates a provider based on configuration
func (f *ProviderFactory) Create(cfg ProviderConfig) (core.Provider, error) {
	f.mu.RLock()
	constructor, ok := f.constructors[cfg.Type]
	opts := ProviderOptions{
		BaseURL:      cfg.BaseURL,
		Retry:        cfg.Resilience.Retry,
		RateLimitRPM: cfg.RateLimitRPM,
		UserAgent:    f.userAgent,
		Hooks:        f.hooks,
		Logger:       f.logger,
		Doer:         f.doer,
	}
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}

	if cb := cfg.Resilience.CircuitBreaker; cb.Enabled {
		opts.CircuitBreaker = &llmclient.CircuitBreakerConfig{
			FailureThreshold: cb.FailureThreshold,
			SuccessThreshold: cb.SuccessThreshold,
			Timeout:          cb.Timeout,
		}
	}

	p, err := constructor(cfg.APIKey, opts)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.Type, err)
	}
	return p, nil
}

// ListRegistered returns the registered provider types, sorted
func (f *ProviderFactory) ListRegistered() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.constructors))
	for t := range f.constructors {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Package rainy is a unified client for AI chat completions. It talks to the
// Rainy API and, when their keys are configured, directly to OpenAI, Gemini,
// Groq and Cerebras, with retries, backoff and SSE streaming.
//
//	client, err := rainy.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	resp, meta, err := client.ChatCompletion(ctx, &rainy.ChatRequest{
//		Model:    "gemini-2.5-flash",
//		Messages: []rainy.Message{rainy.UserMessage("Hello")},
//	})
package rainy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"rainy/config"
	"rainy/internal/core"
	"rainy/internal/httpclient"
	"rainy/internal/llmclient"
	"rainy/internal/observability"
	"rainy/internal/providers"
	"rainy/internal/providers/cerebras"
	"rainy/internal/providers/gemini"
	"rainy/internal/providers/groq"
	"rainy/internal/providers/openai"
	rainyapi "rainy/internal/providers/rainy"
	"rainy/internal/retry"
	"rainy/internal/version"
)

// Request and response types
type (
	ChatRequest         = core.ChatRequest
	ChatResponse        = core.ChatResponse
	ChatCompletionChunk = core.ChatCompletionChunk
	Message             = core.Message
	ResponseMetadata    = core.ResponseMetadata
	ModelsResponse      = core.ModelsResponse
	ChatStream          = core.ChatStream
	StreamFrame         = core.StreamFrame
	ThinkingConfig      = core.ThinkingConfig
	Accumulator         = core.Accumulator
	ClassifiedError     = core.ClassifiedError
	ErrorKind           = core.ErrorKind
	Policy              = retry.Policy
	Hooks               = llmclient.Hooks
	Account             = rainyapi.Provider
)

// Message constructors
var (
	SystemMessage    = core.SystemMessage
	UserMessage      = core.UserMessage
	AssistantMessage = core.AssistantMessage
)

// ErrNoProviders is returned by New when no provider has an API key
var ErrNoProviders = providers.ErrNoProviders

// ErrNoAccount is returned by Account when no Rainy API key is configured
var ErrNoAccount = errors.New("rainy: no Rainy API provider configured")

// WithPolicy returns a context whose calls use p instead of the configured
// retry policy
func WithPolicy(ctx context.Context, p Policy) context.Context {
	return llmclient.WithPolicy(ctx, p)
}

// DefaultPolicy is 3 attempts, 1s base delay, 30s cap and 25% jitter
func DefaultPolicy() Policy {
	return retry.DefaultPolicy()
}

// Option configures New
type Option func(*options)

type options struct {
	logger   *slog.Logger
	hooks    []llmclient.Hooks
	doer     llmclient.Doer
	registry prometheus.Registerer
}

// WithLogger sets the logger of every provider client
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHooks adds observability callbacks
func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = append(o.hooks, h) }
}

// WithHTTPDoer replaces the pooled HTTP client
func WithHTTPDoer(d llmclient.Doer) Option {
	return func(o *options) { o.doer = d }
}

// WithMetrics registers the Prometheus collectors on reg. Metrics are also
// enabled, on the default registerer, by metrics.enabled in the config.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// Client routes chat completions to the configured providers
type Client struct {
	router  *providers.Router
	init    *providers.InitResult
	metrics *observability.Metrics
}

// defaultMetrics is shared by every client that uses the default registerer,
// which accepts each collector only once
var defaultMetrics = sync.OnceValue(func() *observability.Metrics {
	return observability.NewMetrics(nil)
})

// NewFactory returns a provider factory with every built-in connector
// registered
func NewFactory() *providers.ProviderFactory {
	f := providers.NewProviderFactory()
	f.Add(rainyapi.Registration)
	f.Add(openai.Registration)
	f.Add(gemini.Registration)
	f.Add(groq.Registration)
	f.Add(cerebras.Registration)
	return f
}

// New builds a client from cfg. A nil cfg is config.Load("").
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		loaded, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Client{}
	hooks := o.hooks
	switch {
	case o.registry != nil:
		c.metrics = observability.NewMetrics(o.registry)
	case cfg.Metrics.Enabled:
		c.metrics = defaultMetrics()
	}
	if c.metrics != nil {
		hooks = append(hooks, c.metrics.Hooks())
	}

	factory := NewFactory()
	factory.SetLogger(o.logger)
	factory.SetUserAgent(version.UserAgent())
	factory.SetHooks(llmclient.ChainHooks(hooks...))
	if o.doer != nil {
		factory.SetDoer(o.doer)
	} else {
		factory.SetDoer(httpclient.New(httpclient.FromSettings(cfg.HTTP)))
	}

	res, err := providers.Init(ctx, cfg, factory, o.logger)
	if err != nil {
		return nil, err
	}
	c.init = res
	c.router = res.Router
	return c, nil
}

// ChatCompletion sends a request to the provider that serves req.Model
func (c *Client) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, *ResponseMetadata, error) {
	return c.router.ChatCompletion(ctx, req)
}

// StreamChatCompletion opens a stream to the provider that serves req.Model.
// The caller must close the stream.
func (c *Client) StreamChatCompletion(ctx context.Context, req *ChatRequest) (ChatStream, error) {
	return c.router.StreamChatCompletion(ctx, req)
}

// ListModels lists the models of every configured provider
func (c *Client) ListModels(ctx context.Context) (*ModelsResponse, error) {
	return c.router.ListModels(ctx)
}

// Providers returns the names of the configured providers
func (c *Client) Providers() []string {
	return c.router.Providers()
}

// Account returns the Rainy API connector for the account, billing and
// capability endpoints
func (c *Client) Account() (*Account, error) {
	p, ok := c.router.Provider("rainy")
	if !ok {
		return nil, ErrNoAccount
	}
	for {
		switch v := p.(type) {
		case *rainyapi.Provider:
			return v, nil
		case interface{ Unwrap() core.Provider }:
			p = v.Unwrap()
		default:
			return nil, ErrNoAccount
		}
	}
}

// MetricsHandler serves the Prometheus registry g, or the default gatherer
// when g is nil
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return observability.Handler(g)
}

// Close releases the capability cache
func (c *Client) Close() error {
	return c.init.Close()
}

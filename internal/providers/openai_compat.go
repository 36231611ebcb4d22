package providers

import (
	"context"
	"net/http"

	"rainy/internal/core"
	"rainy/internal/llmclient"
	"rainy/internal/sse"
)

// CompatibleConfig describes an API that speaks the OpenAI chat completions
// wire format.
type CompatibleConfig struct {
	// Name is the provider identity used for error extraction and metrics
	Name           string
	DefaultBaseURL string

	// ChatBody adapts a validated request into the JSON body to send.
	// nil sends the request without its routing-only fields.
	ChatBody func(req *core.ChatRequest) any

	// ExtraHeaders runs after the bearer token is set
	ExtraHeaders func(req *http.Request)

	// NormalizeModels post-processes a /models listing
	NormalizeModels func(resp *core.ModelsResponse)
}

// Compatible implements core.Provider for OpenAI-compatible APIs
type Compatible struct {
	cfg    CompatibleConfig
	client *llmclient.Client
	apiKey string
}

// NewCompatible creates an OpenAI-compatible provider
func NewCompatible(apiKey string, cfg CompatibleConfig, opts ProviderOptions) *Compatible {
	p := &Compatible{cfg: cfg, apiKey: apiKey}
	p.client = llmclient.New(opts.ClientConfig(cfg.Name, cfg.DefaultBaseURL), p.setHeaders, opts.ClientOptions()...)
	return p
}

// Name returns the provider identity
func (p *Compatible) Name() string {
	return p.cfg.Name
}

// Client exposes the underlying client for connector-specific endpoints
func (p *Compatible) Client() *llmclient.Client {
	return p.client
}

// SetBaseURL allows configuring a custom base URL for the provider
func (p *Compatible) SetBaseURL(url string) {
	p.client.SetBaseURL(url)
}

func (p *Compatible) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.cfg.ExtraHeaders != nil {
		p.cfg.ExtraHeaders(req)
	}
}

func (p *Compatible) chatBody(req *core.ChatRequest) any {
	if p.cfg.ChatBody != nil {
		return p.cfg.ChatBody(req)
	}
	return StripRouting(req)
}

// StripRouting returns a copy of req without the fields only the Rainy API
// understands.
func StripRouting(req *core.ChatRequest) *core.ChatRequest {
	cp := *req
	cp.Provider = ""
	cp.ThinkingConfig = nil
	return &cp
}

// ChatCompletion sends a chat completion request. The request is validated
// before any network I/O.
func (p *Compatible) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, *core.ResponseMetadata, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	nonStream := *req
	nonStream.Stream = false
	nonStream.StreamOptions = nil

	var resp core.ChatResponse
	raw, err := p.client.DoWithResponse(ctx, llmclient.Request{
		Method:    http.MethodPost,
		Endpoint:  "/chat/completions",
		Body:      p.chatBody(&nonStream),
		Operation: "chat_completion",
	}, &resp)
	if err != nil {
		return nil, nil, err
	}
	resp.Provider = p.cfg.Name
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return &resp, llmclient.Metadata(p.cfg.Name, raw), nil
}

// StreamChatCompletion opens a decoded SSE stream (caller must close)
func (p *Compatible) StreamChatCompletion(ctx context.Context, req *core.ChatRequest) (core.ChatStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	stream, err := p.client.OpenStream(ctx, llmclient.Request{
		Method:    http.MethodPost,
		Endpoint:  "/chat/completions",
		Body:      p.chatBody(req.WithStreaming()),
		Operation: "stream_chat_completion",
	}, sse.DecodeFor(p.cfg.Name))
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// ListModels retrieves the list of available models
func (p *Compatible) ListModels(ctx context.Context) (*core.ModelsResponse, error) {
	var resp core.ModelsResponse
	err := p.client.Do(ctx, llmclient.Request{
		Method:    http.MethodGet,
		Endpoint:  "/models",
		Operation: "list_models",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if p.cfg.NormalizeModels != nil {
		p.cfg.NormalizeModels(&resp)
	}
	return &resp, nil
}

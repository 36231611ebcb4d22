package providers

import (
	"context"

	"rainy/internal/core"
)

// namedProvider reports a configured instance name instead of the
// connector's type, e.g. "openai-backup" for a second OpenAI account.
type namedProvider struct {
	inner        core.Provider
	providerName string
}

func newNamedProvider(p core.Provider, providerName string) core.Provider {
	if p.Name() == providerName {
		return p
	}
	return &namedProvider{inner: p, providerName: providerName}
}

func (w *namedProvider) Name() string {
	return w.providerName
}

func (w *namedProvider) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, *core.ResponseMetadata, error) {
	resp, meta, err := w.inner.ChatCompletion(ctx, req)
	if err == nil && resp != nil {
		resp.Provider = w.providerName
	}
	if meta != nil {
		meta.Provider = w.providerName
	}
	return resp, meta, err
}

func (w *namedProvider) StreamChatCompletion(ctx context.Context, req *core.ChatRequest) (core.ChatStream, error) {
	return w.inner.StreamChatCompletion(ctx, req)
}

func (w *namedProvider) ListModels(ctx context.Context) (*core.ModelsResponse, error) {
	return w.inner.ListModels(ctx)
}

// Unwrap returns the connector behind the instance name
func (w *namedProvider) Unwrap() core.Provider {
	return w.inner
}

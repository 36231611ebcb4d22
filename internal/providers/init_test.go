package providers

import (
	"context"
	"errors"
	"testing"

	"rainy/config"
	"rainy/internal/cache"
	"rainy/internal/core"
)

type cachedMockProvider struct {
	mockProvider
	loader *cache.Loader
}

func (m *cachedMockProvider) SetCapabilityCache(l *cache.Loader) { m.loader = l }

func TestInit(t *testing.T) {
	clearProviderEnv(t)

	var rainyProvider *cachedMockProvider
	factory := NewProviderFactory()
	factory.Register("rainy", func(string, ProviderOptions) (core.Provider, error) {
		rainyProvider = &cachedMockProvider{mockProvider: mockProvider{name: "rainy"}}
		return rainyProvider, nil
	})
	factory.Register("openai", func(string, ProviderOptions) (core.Provider, error) {
		return &mockProvider{name: "openai"}, nil
	})
	factory.Register("groq", func(string, ProviderOptions) (core.Provider, error) {
		return nil, errors.New("bad key")
	})

	cfg := config.Default()
	cfg.Providers = map[string]config.RawProviderConfig{
		"rainy":         {Type: "rainy", APIKey: "ra-test"},
		"openai-backup": {Type: "openai", APIKey: "sk-test"},
		"groq":          {Type: "groq", APIKey: "gsk-test"},
		"gemini":        {Type: "gemini", APIKey: ""},
	}

	res, err := Init(context.Background(), cfg, factory, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer res.Close()

	got := res.Router.Providers()
	if len(got) != 2 || got[0] != "openai-backup" || got[1] != "rainy" {
		t.Fatalf("providers = %v", got)
	}
	if p, _ := res.Router.Provider("openai-backup"); p.Name() != "openai-backup" {
		t.Errorf("instance name not applied: %q", p.Name())
	}
	if rainyProvider == nil || rainyProvider.loader != res.Loader {
		t.Error("expected capability cache to be wired into the rainy provider")
	}

	// gpt-4o's owner "openai" is not configured under that name, so the default serves it
	p, _, err := res.Router.Resolve(&core.ChatRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name() != "rainy" {
		t.Errorf("routed to %q, want rainy", p.Name())
	}

	if err := res.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := res.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestInit_NoProviders(t *testing.T) {
	clearProviderEnv(t)

	_, err := Init(context.Background(), config.Default(), NewProviderFactory(), nil)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestInit_RequiresFactory(t *testing.T) {
	if _, err := Init(context.Background(), config.Default(), nil, nil); err == nil {
		t.Fatal("expected error without a factory")
	}
}

package llmclient

import (
	"context"
	"testing"

	"rainy/internal/core"
)

type ctxTag struct{}

func TestChainHooks(t *testing.T) {
	var order []string
	first := Hooks{
		OnRequestStart: func(ctx context.Context, _ RequestInfo) context.Context {
			order = append(order, "start-1")
			return context.WithValue(ctx, ctxTag{}, "first")
		},
		OnRetry: func(context.Context, RetryInfo) { order = append(order, "retry-1") },
	}
	second := Hooks{
		OnRequestStart: func(ctx context.Context, _ RequestInfo) context.Context {
			order = append(order, "start-2:"+ctx.Value(ctxTag{}).(string))
			return ctx
		},
		OnRequestEnd:  func(context.Context, ResponseInfo) { order = append(order, "end-2") },
		OnStreamFrame: func(context.Context, string, core.FrameKind) { order = append(order, "frame-2") },
	}

	h := ChainHooks(first, Hooks{}, second)
	ctx := h.OnRequestStart(context.Background(), RequestInfo{})
	h.OnRetry(ctx, RetryInfo{})
	h.OnRequestEnd(ctx, ResponseInfo{})
	h.OnStreamFrame(ctx, "openai", core.FrameData)

	want := []string{"start-1", "start-2:first", "retry-1", "end-2", "frame-2"}
	if len(order) != len(want) {
		t.Fatalf("calls = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestChainHooks_Empty(t *testing.T) {
	h := ChainHooks()
	if h.OnRequestStart != nil || h.OnRequestEnd != nil || h.OnRetry != nil || h.OnStreamFrame != nil {
		t.Error("expected all hooks to be nil")
	}
}

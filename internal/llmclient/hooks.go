package llmclient

import (
	"context"
	"time"

	"rainy/internal/core"
)

// RequestInfo describes a logical call as it starts
type RequestInfo struct {
	Provider  string
	Operation string
	Method    string
	Endpoint  string
	RequestID string
	Stream    bool
}

// ResponseInfo describes a logical call once it has finished. For streams it
// is reported when the connection is established or has definitively failed.
type ResponseInfo struct {
	Provider   string
	Operation  string
	RequestID  string
	Stream     bool
	StatusCode int
	Attempts   int
	Latency    time.Duration
	Err        error
}

// RetryInfo describes a failed attempt that will be retried
type RetryInfo struct {
	Provider  string
	Operation string
	RequestID string
	Attempt   int
	Delay     time.Duration
	Err       *core.ClassifiedError
}

// Hooks are optional observability callbacks. Every field may be nil.
type Hooks struct {
	// OnRequestStart may return a derived context, e.g. carrying a span
	OnRequestStart func(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd   func(ctx context.Context, info ResponseInfo)
	OnRetry        func(ctx context.Context, info RetryInfo)
	// OnStreamFrame is called for every frame a stream yields
	OnStreamFrame func(ctx context.Context, provider string, kind core.FrameKind)
}

// ChainHooks returns Hooks that call each of hs in order. Contexts returned by
// OnRequestStart are threaded through the chain.
func ChainHooks(hs ...Hooks) Hooks {
	var out Hooks
	for _, h := range hs {
		if h.OnRequestStart != nil {
			prev, next := out.OnRequestStart, h.OnRequestStart
			out.OnRequestStart = func(ctx context.Context, info RequestInfo) context.Context {
				if prev != nil {
					ctx = prev(ctx, info)
				}
				return next(ctx, info)
			}
		}
		if h.OnRequestEnd != nil {
			prev, next := out.OnRequestEnd, h.OnRequestEnd
			out.OnRequestEnd = func(ctx context.Context, info ResponseInfo) {
				if prev != nil {
					prev(ctx, info)
				}
				next(ctx, info)
			}
		}
		if h.OnRetry != nil {
			prev, next := out.OnRetry, h.OnRetry
			out.OnRetry = func(ctx context.Context, info RetryInfo) {
				if prev != nil {
					prev(ctx, info)
				}
				next(ctx, info)
			}
		}
		if h.OnStreamFrame != nil {
			prev, next := out.OnStreamFrame, h.OnStreamFrame
			out.OnStreamFrame = func(ctx context.Context, provider string, kind core.FrameKind) {
				if prev != nil {
					prev(ctx, provider, kind)
				}
				next(ctx, provider, kind)
			}
		}
	}
	return out
}

// attemptObserver bridges retry.Observer events onto Hooks
type attemptObserver struct {
	ctx      context.Context
	hooks    Hooks
	info     RequestInfo
	attempts int
}

func (o *attemptObserver) OnAttempt(attempt int) {
	o.attempts = attempt
}

func (o *attemptObserver) OnRetry(attempt int, err *core.ClassifiedError, delay time.Duration) {
	if o.hooks.OnRetry == nil {
		return
	}
	o.hooks.OnRetry(o.ctx, RetryInfo{
		Provider:  o.info.Provider,
		Operation: o.info.Operation,
		RequestID: o.info.RequestID,
		Attempt:   attempt,
		Delay:     delay,
		Err:       err,
	})
}

func (o *attemptObserver) OnDone(attempts int, _ error) {
	o.attempts = attempts
}

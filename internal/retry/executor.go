package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rainy/internal/core"
)

// Outcome is the result of exactly one attempt
type Outcome[T any] struct {
	Value T
	Err   *core.ClassifiedError
}

// Success wraps a successful attempt's payload
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Failure wraps a classified attempt failure
func Failure[T any](err *core.ClassifiedError) Outcome[T] {
	return Outcome[T]{Err: err}
}

// Failed reports whether the attempt failed
func (o Outcome[T]) Failed() bool {
	return o.Err != nil
}

// Sleeper waits between attempts. Sleep must return ctx.Err() as soon as ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f(ctx, d)
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Observer receives attempt lifecycle events, e.g. for metrics
type Observer interface {
	// OnAttempt is called before each attempt is made
	OnAttempt(attempt int)
	// OnRetry is called when a failed attempt will be retried after delay
	OnRetry(attempt int, err *core.ClassifiedError, delay time.Duration)
	// OnDone is called once with the final attempt count; err is nil on success
	OnDone(attempts int, err error)
}

var defaultRand = NewLockedRand()

type options struct {
	rng      Rand
	sleeper  Sleeper
	logger   *slog.Logger
	observer Observer
	op       string
}

// Option customizes Execute
type Option func(*options)

// WithRand sets the jitter source
func WithRand(r Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithSleeper replaces the timer-based wait between attempts
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

// WithLogger sets the logger used for retry and exhaustion messages
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver registers attempt lifecycle hooks
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithOperation names the operation in log records
func WithOperation(name string) Option {
	return func(o *options) { o.op = name }
}

// Execute runs op until it succeeds, fails with a non-retryable error, or the
// policy is exhausted. Attempts are numbered from 1 and never overlap.
//
// A non-retryable failure is returned as is. When every allowed attempt failed
// with a retryable error the result is a *core.RetriesExhaustedError wrapping
// the last failure. If ctx is done while waiting between attempts, Execute
// returns immediately with a non-retryable classified error wrapping ctx.Err().
func Execute[T any](ctx context.Context, policy Policy, op func(ctx context.Context, attempt int) Outcome[T], opts ...Option) (T, error) {
	o := options{
		rng:     defaultRand,
		sleeper: timerSleeper{},
		op:      "request",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	var zero T
	if err := policy.Validate(); err != nil {
		return zero, err
	}

	for attempt := 1; ; attempt++ {
		if o.observer != nil {
			o.observer.OnAttempt(attempt)
		}

		out := op(ctx, attempt)
		if !out.Failed() {
			if attempt > 1 {
				o.logger.Info("retry succeeded", "operation", o.op, "attempt", attempt)
			}
			o.done(attempt, nil)
			return out.Value, nil
		}

		failure := out.Err
		if !failure.Retryable {
			o.logger.Debug("attempt failed with non-retryable error",
				"operation", o.op,
				"attempt", attempt,
				"kind", failure.Kind,
				"status", failure.RawStatus,
				"error", failure.Message,
			)
			o.done(attempt, failure)
			return zero, failure
		}

		delay, ok := policy.NextDelay(attempt, o.rng, failure.SuggestedDelay)
		if !ok {
			exhausted := &core.RetriesExhaustedError{Attempts: attempt, Last: failure}
			o.logger.Error("retries exhausted",
				"operation", o.op,
				"attempts", attempt,
				"kind", failure.Kind,
				"status", failure.RawStatus,
				"provider", failure.Provider,
				"request_id", failure.RequestID,
				"error", failure.Message,
			)
			o.done(attempt, exhausted)
			return zero, exhausted
		}

		o.logger.Warn("attempt failed, retrying",
			"operation", o.op,
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"delay", delay,
			"kind", failure.Kind,
			"status", failure.RawStatus,
			"provider", failure.Provider,
			"request_id", failure.RequestID,
			"error", failure.Message,
		)
		if o.observer != nil {
			o.observer.OnRetry(attempt, failure, delay)
		}

		if err := o.sleeper.Sleep(ctx, delay); err != nil {
			interrupted := interruptedError(err, failure)
			o.done(attempt, interrupted)
			return zero, interrupted
		}
	}
}

func (o *options) done(attempts int, err error) {
	if o.observer != nil {
		o.observer.OnDone(attempts, err)
	}
}

// interruptedError reports a wait cut short by the caller's context
func interruptedError(err error, last *core.ClassifiedError) *core.ClassifiedError {
	kind := core.KindNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		kind = core.KindTimeout
	}
	ce := core.NewClassifiedError(kind, false, 0, "retry wait interrupted: "+err.Error(), nil, err)
	ce.Provider = last.Provider
	ce.RequestID = last.RequestID
	return ce
}

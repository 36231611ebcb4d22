// Package retry provides the bounded retry loop shared by every provider call:
// exponential backoff with jitter, server-suggested delays and cancellable waits.
package retry

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Policy configures one retried operation. It is a value type and is only read.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one
	MaxAttempts int `yaml:"max_attempts"`
	// BaseDelay is the wait after the first failed attempt, before jitter
	BaseDelay time.Duration `yaml:"base_delay"`
	// MaxDelay caps the computed (not the server-suggested) delay
	MaxDelay time.Duration `yaml:"max_delay"`
	// JitterFactor spreads each delay uniformly over ±JitterFactor of its value
	JitterFactor float64 `yaml:"jitter_factor"`
}

// DefaultPolicy returns three attempts, 1s base delay, 30s cap and ±25% jitter
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.25,
	}
}

// Validate reports the first field outside its allowed range
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("retry policy: max_attempts must be at least 1, got %d", p.MaxAttempts)
	case p.BaseDelay <= 0:
		return fmt.Errorf("retry policy: base_delay must be positive, got %s", p.BaseDelay)
	case p.MaxDelay < p.BaseDelay:
		return fmt.Errorf("retry policy: max_delay (%s) must not be less than base_delay (%s)", p.MaxDelay, p.BaseDelay)
	case p.JitterFactor < 0 || p.JitterFactor > 1:
		return fmt.Errorf("retry policy: jitter_factor must be within [0, 1], got %v", p.JitterFactor)
	}
	return nil
}

// Rand is the randomness source used for jitter.
// Implementations shared between goroutines must be safe for concurrent use.
type Rand interface {
	// Float64 returns a value in [0.0, 1.0)
	Float64() float64
}

type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedRand returns a concurrency-safe Rand seeded from the runtime's
// entropy source.
func NewLockedRand() Rand {
	return &lockedRand{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededRand returns a concurrency-safe, reproducible Rand
func NewSeededRand(seed uint64) Rand {
	return &lockedRand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// Backoff returns the capped exponential delay for the given failed attempt,
// before jitter: min(BaseDelay * 2^(attempt-1), MaxDelay).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if d >= p.MaxDelay/2 {
			return p.MaxDelay
		}
		d *= 2
	}
	return min(d, p.MaxDelay)
}

// NextDelay computes the wait after failed attempt number attempt (1-based).
// It returns false once attempt has reached MaxAttempts.
//
// The computed delay is Backoff(attempt) spread uniformly over
// [exp*(1-JitterFactor), exp*(1+JitterFactor)] and kept at or below MaxDelay.
// A suggested delay larger than that value is returned unchanged, even when it
// exceeds MaxDelay.
func (p Policy) NextDelay(attempt int, rng Rand, suggested *time.Duration) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}

	exp := float64(p.Backoff(attempt))
	delay := exp
	if p.JitterFactor > 0 && rng != nil {
		lo := exp * (1 - p.JitterFactor)
		hi := exp * (1 + p.JitterFactor)
		delay = lo + rng.Float64()*(hi-lo)
	}
	computed := min(time.Duration(delay), p.MaxDelay)

	if suggested != nil && *suggested > computed {
		return *suggested, true
	}
	return computed, true
}

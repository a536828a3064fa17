// Package retry wraps fallible operations with bounded exponential backoff.
//
// A failed attempt i (0-indexed) waits min((Base^i + U(0,1)) * Unit, MaxDelay)
// before the next try, with Unit defaulting to one second. The loop itself is a
// failsafe-go retry policy. Once MaxAttempts attempts have failed the wrapper gives
// up and hands back the zero value with ok=false; callers treat that as "skip".
// Retried side effects are not deduplicated, so only wrap idempotent work.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/metrics"
)

// Defaults for the retry policy.
const (
	DefaultMaxAttempts = 3
	DefaultBase        = 2.0
	DefaultMaxDelay    = 30 * time.Second
)

// Policy is a retry budget plus a backoff function.
type Policy struct {
	MaxAttempts int
	Base        float64
	MaxDelay    time.Duration

	// Jitter returns a value in [0,1); overridable in tests.
	Jitter func() float64
	// Unit scales one backoff step; time.Second unless set.
	Unit   time.Duration
	Logger *zap.Logger
}

// New builds a policy with the given budget and base, filling defaults for
// anything left at zero.
func New(maxAttempts int, base float64, logger *zap.Logger) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if base <= 0 {
		base = DefaultBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		Base:        base,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      rand.Float64,
		Unit:        time.Second,
		Logger:      logger,
	}
}

// WithAttempts returns a copy of p with a different retry budget.
func (p *Policy) WithAttempts(n int) *Policy {
	cp := *p
	if n > 0 {
		cp.MaxAttempts = n
	}
	return &cp
}

// Backoff returns the wait after failed attempt i.
func (p *Policy) Backoff(attempt int) time.Duration {
	jitter := 0.0
	if p.Jitter != nil {
		jitter = p.Jitter()
	}
	unit := p.Unit
	if unit <= 0 {
		unit = time.Second
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	steps := math.Pow(p.Base, float64(attempt)) + jitter
	if steps >= float64(maxDelay)/float64(unit) {
		return maxDelay
	}
	return time.Duration(steps * float64(unit))
}

// Do runs fn until it succeeds or the policy's budget is spent. The second
// return value is false when every attempt failed or ctx ended while waiting.
func Do[T any](ctx context.Context, p *Policy, operation string, fn func(context.Context) (T, error)) (T, bool) {
	var zero T
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	// Executions are sequential, so the closures below share state freely.
	var wait time.Duration
	calls := 0
	exceeded := false
	rp := retrypolicy.NewBuilder[T]().
		WithMaxRetries(attempts - 1).
		WithDelayFunc(func(failsafe.ExecutionAttempt[T]) time.Duration {
			wait = p.Backoff(calls - 1)
			return wait
		}).
		OnRetry(func(e failsafe.ExecutionEvent[T]) {
			metrics.ObserveRetry(operation, "failed")
			logger.Warn("attempt failed, retrying",
				zap.String("operation", operation),
				zap.Int("attempt", calls),
				zap.Duration("wait", wait),
				zap.Error(e.LastError()),
			)
		}).
		OnRetriesExceeded(func(e failsafe.ExecutionEvent[T]) {
			exceeded = true
			metrics.ObserveRetry(operation, "exhausted")
			logger.Error("max retries reached",
				zap.String("operation", operation),
				zap.Int("attempts", calls),
				zap.Error(e.LastError()),
			)
		}).
		Build()

	result, err := failsafe.With(rp).WithContext(ctx).Get(func() (T, error) {
		calls++
		return fn(ctx)
	})
	if err == nil {
		if calls > 1 {
			metrics.ObserveRetry(operation, "succeeded")
		}
		return result, true
	}
	if !exceeded {
		metrics.ObserveRetry(operation, "exhausted")
		logger.Error("retry aborted",
			zap.String("operation", operation),
			zap.Int("attempt", calls),
			zap.Error(err),
		)
	}
	return zero, false
}

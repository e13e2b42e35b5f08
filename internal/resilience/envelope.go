// Package resilience wraps an outbound call in bounded exponential-backoff
// retries inside a circuit breaker, with an optional fallback that absorbs
// the final failure instead of propagating it.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"vektor/apps/embedder/internal/metrics"
)

// ErrCircuitOpen reports that the breaker short-circuited the call.
var ErrCircuitOpen = gobreaker.ErrOpenState

type Config struct {
	Name             string
	MaxRetries       int // retries after the first attempt
	InitialWait      time.Duration
	MaxWait          time.Duration
	BreakerThreshold uint32 // consecutive failures before the circuit opens
	BreakerCooldown  time.Duration
}

// Fallback performs final-failure handling. It must not re-enter the retry
// pipeline.
type Fallback func(ctx context.Context, err error)

// Envelope composes retry and circuit breaking around a call returning T.
// The breaker sits outside the retry loop: one exhausted retry sequence
// counts as one consecutive failure, and an open circuit skips the call
// entirely until the cool-down elapses.
type Envelope[T any] struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker[T]
}

func New[T any](cfg Config) *Envelope[T] {
	if cfg.InitialWait <= 0 {
		cfg.InitialWait = 500 * time.Millisecond
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 10 * time.Second
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerTransitionsTotal.WithLabelValues(name, to.String()).Inc()
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Envelope[T]{
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[T](settings),
	}
}

// Attempts returns how many times op runs per Execute when every attempt fails.
func (e *Envelope[T]) Attempts() int {
	return e.cfg.MaxRetries + 1
}

// Execute runs op through the breaker with retries. The error of the last
// attempt (or ErrCircuitOpen) is returned once the budget is exhausted.
func (e *Envelope[T]) Execute(ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	return e.breaker.Execute(func() (T, error) {
		var result T

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = e.cfg.InitialWait
		bo.MaxInterval = e.cfg.MaxWait
		bo.MaxElapsedTime = 0

		attempt := 0
		err := backoff.Retry(func() error {
			attempt++
			var opErr error
			result, opErr = op(ctx)
			if opErr != nil && attempt <= e.cfg.MaxRetries {
				slog.WarnContext(ctx, "transient failure, will retry", "name", e.cfg.Name, "attempt", attempt, "error", opErr)
			}
			return opErr
		}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.cfg.MaxRetries)), ctx))

		return result, err
	})
}

// ExecuteWithFallback never lets the failure escape: when the retry budget is
// exhausted or the circuit is open, fallback runs and ok is false.
func (e *Envelope[T]) ExecuteWithFallback(ctx context.Context, op func(ctx context.Context) (T, error), fallback Fallback) (result T, ok bool) {
	result, err := e.Execute(ctx, op)
	if err == nil {
		return result, true
	}
	if errors.Is(err, ErrCircuitOpen) {
		slog.WarnContext(ctx, "circuit open, routing to fallback", "name", e.cfg.Name)
	}
	fallback(ctx, err)
	var zero T
	return zero, false
}

package resilience_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vektor/apps/embedder/internal/resilience"
)

func fastConfig(name string) resilience.Config {
	return resilience.Config{
		Name:             name,
		MaxRetries:       2,
		InitialWait:      time.Millisecond,
		MaxWait:          5 * time.Millisecond,
		BreakerThreshold: 100,
		BreakerCooldown:  time.Minute,
	}
}

func TestExecute_SucceedsFirstTry(t *testing.T) {
	env := resilience.New[int](fastConfig("ok"))

	v, err := env.Execute(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestExecute_RetriesTransientFailure(t *testing.T) {
	env := resilience.New[string](fastConfig("retry"))

	var calls atomic.Int32
	v, err := env.Execute(context.Background(), func(ctx context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("transient")
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecute_ExhaustsRetryBudget(t *testing.T) {
	env := resilience.New[string](fastConfig("exhaust"))

	var calls atomic.Int32
	_, err := env.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", errors.New("always fails")
	})
	require.Error(t, err)
	assert.EqualError(t, err, "always fails")
	// 1 initial + 2 retries
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, env.Attempts())
}

func TestExecute_BreakerOpensAfterThreshold(t *testing.T) {
	cfg := fastConfig("breaker")
	cfg.MaxRetries = 0
	cfg.BreakerThreshold = 3
	env := resilience.New[int](cfg)

	var calls atomic.Int32
	op := func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("down")
	}

	// First 3 invocations reach the operation and trip the breaker.
	for i := 0; i < 3; i++ {
		_, err := env.Execute(context.Background(), op)
		require.Error(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())

	// 4th and 5th are short-circuited: the operation is never reached.
	for i := 0; i < 2; i++ {
		_, err := env.Execute(context.Background(), op)
		assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecuteWithFallback_InvokesFallbackOnExhaustion(t *testing.T) {
	cfg := fastConfig("fallback")
	cfg.MaxRetries = 1
	env := resilience.New[int](cfg)

	var fbErr error
	_, ok := env.ExecuteWithFallback(context.Background(),
		func(ctx context.Context) (int, error) { return 0, errors.New("fatal") },
		func(ctx context.Context, err error) { fbErr = err },
	)
	assert.False(t, ok)
	require.Error(t, fbErr)
	assert.EqualError(t, fbErr, "fatal")
}

func TestExecuteWithFallback_SkipsFallbackOnSuccess(t *testing.T) {
	env := resilience.New[int](fastConfig("no-fallback"))

	fbCalled := false
	v, ok := env.ExecuteWithFallback(context.Background(),
		func(ctx context.Context) (int, error) { return 7, nil },
		func(ctx context.Context, err error) { fbCalled = true },
	)
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	assert.False(t, fbCalled)
}

func TestExecuteWithFallback_OpenCircuitRoutesToFallback(t *testing.T) {
	cfg := fastConfig("open-fb")
	cfg.MaxRetries = 0
	cfg.BreakerThreshold = 1
	env := resilience.New[int](cfg)

	_, err := env.Execute(context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("trip")
	})
	require.Error(t, err)

	var fbErr error
	reached := false
	_, ok := env.ExecuteWithFallback(context.Background(),
		func(ctx context.Context) (int, error) { reached = true; return 0, nil },
		func(ctx context.Context, err error) { fbErr = err },
	)
	assert.False(t, ok)
	assert.False(t, reached)
	assert.ErrorIs(t, fbErr, resilience.ErrCircuitOpen)
}

func TestExecute_ContextCancelStopsRetries(t *testing.T) {
	cfg := fastConfig("cancel")
	cfg.MaxRetries = 100
	cfg.InitialWait = 50 * time.Millisecond
	env := resilience.New[int](cfg)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := env.Execute(ctx, func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("failing")
	})
	require.Error(t, err)
	assert.Less(t, calls.Load(), int32(5))
}

package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryEventualSuccess(t *testing.T) {
	calls := 0
	out := retry(context.Background(), "test", 5, noBackoff, func(ctx context.Context, attempt int) Outcome[string] {
		calls++
		if attempt < 3 {
			return retryable[string](errors.New("503"))
		}
		return succeed("ok")
	})

	assert.Equal(t, Success, out.Kind)
	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, 4, calls)
}

func TestRetryExhaustion(t *testing.T) {
	calls := 0
	out := retry(context.Background(), "test", 5, noBackoff, func(ctx context.Context, attempt int) Outcome[int] {
		calls++
		return retryable[int](errors.New("still down"))
	})

	assert.Equal(t, Retryable, out.Kind)
	assert.EqualError(t, out.Err, "still down")
	assert.Equal(t, 5, calls)
}

func TestRetryStopsOnHardFailure(t *testing.T) {
	calls := 0
	out := retry(context.Background(), "test", 5, noBackoff, func(ctx context.Context, attempt int) Outcome[int] {
		calls++
		return hardFail[int](errors.New("quota"))
	})

	assert.Equal(t, HardFailure, out.Kind)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	out := retry(ctx, "test", 5, func(int) time.Duration { return time.Hour }, func(ctx context.Context, attempt int) Outcome[int] {
		calls++
		cancel()
		return retryable[int](errors.New("boom"))
	})

	assert.Equal(t, HardFailure, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExponentialJitterBounds(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := time.Duration(1<<attempt) * time.Second
		for i := 0; i < 50; i++ {
			d := ExponentialJitter(attempt)
			assert.GreaterOrEqual(t, d, base)
			assert.Less(t, d, base+time.Second)
		}
	}
	assert.Equal(t, 10*time.Second, ExponentialJitter(4))
	assert.Equal(t, 10*time.Second, ExponentialJitter(30))
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "retryable", Retryable.String())
	assert.Equal(t, "hard_failure", HardFailure.String())
}

package search

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"SeekBeat/logger"
)

// OutcomeKind tags the result of one provider attempt.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Retryable
	HardFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	default:
		return "hard_failure"
	}
}

// Outcome is what a single attempt reports back to the retry loop.
type Outcome[T any] struct {
	Kind  OutcomeKind
	Value T
	Err   error
}

func succeed[T any](v T) Outcome[T]         { return Outcome[T]{Kind: Success, Value: v} }
func retryable[T any](err error) Outcome[T] { return Outcome[T]{Kind: Retryable, Err: err} }
func hardFail[T any](err error) Outcome[T]  { return Outcome[T]{Kind: HardFailure, Err: err} }

// Backoff returns the wait before the attempt following attempt (0-based).
type Backoff func(attempt int) time.Duration

const maxBackoff = 10 * time.Second

// ExponentialJitter waits min(2^attempt + U(0,1) seconds, 10s).
func ExponentialJitter(attempt int) time.Duration {
	secs := math.Pow(2, float64(attempt)) + rand.Float64()
	d := time.Duration(secs * float64(time.Second))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

// retry runs fn until it succeeds, hard-fails, or attempts run out. The
// returned Outcome is the last one observed; on exhaustion its Kind stays
// Retryable so callers can tell exhaustion apart from a hard failure.
func retry[T any](ctx context.Context, name string, attempts int, backoff Backoff, fn func(ctx context.Context, attempt int) Outcome[T]) Outcome[T] {
	if attempts < 1 {
		attempts = 1
	}
	if backoff == nil {
		backoff = ExponentialJitter
	}

	var last Outcome[T]
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return hardFail[T](err)
		}
		if attempt > 0 {
			logger.Debug("provider retry",
				logger.String("provider", name),
				logger.Int("attempt", attempt),
				logger.Int("budget", attempts))
		}

		last = fn(ctx, attempt)
		if last.Kind != Retryable {
			return last
		}
		logger.Warn("provider attempt failed",
			logger.String("provider", name),
			logger.Int("attempt", attempt+1),
			logger.ErrorField(last.Err))

		if attempt == attempts-1 {
			break
		}
		wait := backoff(attempt)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return hardFail[T](ctx.Err())
		}
	}
	return last
}

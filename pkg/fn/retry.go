package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts configures retry behavior.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// DefaultRetry provides sensible retry defaults.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// Retry runs f up to MaxAttempts times, backing off exponentially between
// failures. A canceled context wins over a pending retry.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	wait := opts.InitialWait
	var last Result[T]

	for attempt := 1; ; attempt++ {
		last = f(ctx)
		if last.IsOk() || attempt >= opts.MaxAttempts {
			return last
		}

		pause := wait
		if opts.Jitter {
			pause = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if pause > opts.MaxWait {
			pause = opts.MaxWait
		}
		select {
		case <-ctx.Done():
			return Err[T](ctx.Err())
		case <-time.After(pause):
		}
		if wait *= 2; wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
}

// RetryStage wraps a Stage with retry logic.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] {
			return stage(ctx, in)
		})
	}
}

package resilience

import (
	"context"
	"errors"
	"time"
)

// WithTimeout races op against a timer. When the timer wins the call returns
// a *TimeoutError carrying message; op keeps running with a cancelled context
// and its eventual result is discarded. A non-positive d disables the timer.
func WithTimeout[T any](ctx context.Context, d time.Duration, message string, op func(context.Context) (T, error)) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return op(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op(tctx)
		done <- result{v: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, &TimeoutError{Message: message, After: d}
		}
		return r.v, r.err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Message: message, After: d}
	}
}

package resilience

import (
	"context"
	"time"

	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/platform/logger"
)

// Executor is the call path every external store request takes:
// retry (outermost), then the circuit breaker, then the timeout (innermost),
// so each attempt gets a fresh timeout budget.
type Executor struct {
	Store   string
	Policy  RetryPolicy
	Timeout time.Duration
	Breaker *Breaker
	Log     *logger.Logger
}

// Run executes op under the executor's policies and records store metrics.
func Run[T any](ctx context.Context, ex Executor, operation string, op func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	policy := ex.Policy
	userHook := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		observability.StoreRetries.WithLabelValues(ex.Store, operation).Inc()
		if ex.Log != nil {
			ex.Log.Warn("store call failed, retrying",
				"store", ex.Store,
				"operation", operation,
				"attempt", attempt,
				"delay", delay.String(),
				"error", err,
			)
		}
		if userHook != nil {
			userHook(attempt, err, delay)
		}
	}
	msg := ex.Store + " " + operation + " timed out"

	v, err := WithRetry(ctx, policy, func(ctx context.Context) (T, error) {
		return Guard(ctx, ex.Breaker, func(ctx context.Context) (T, error) {
			return WithTimeout(ctx, ex.Timeout, msg, op)
		})
	})
	observability.StoreCallDuration.
		WithLabelValues(ex.Store, operation, observability.Outcome(err)).
		Observe(time.Since(start).Seconds())
	return v, err
}

// Exec is Run for operations without a result.
func Exec(ctx context.Context, ex Executor, operation string, op func(context.Context) error) error {
	_, err := Run(ctx, ex, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

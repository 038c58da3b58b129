package resilience

import (
	"context"
	"math"
	"time"

	"github.com/yungbote/tunegraph/internal/config"
)

type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// RetryableSignatures are matched case-insensitively against the error
	// text. Nil selects DefaultRetryableSignatures.
	RetryableSignatures []string
	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.BackoffMultiplier,
	}
}

// Delay returns the sleep before retry number attempt (0-based):
// min(initial * multiplier^attempt, max).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// WithRetry runs op up to MaxRetries+1 times. Non-retryable errors and the
// final error after exhaustion are returned unchanged.
func WithRetry[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == maxRetries || !IsRetryable(err, p.RetryableSignatures) {
			return zero, err
		}
		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}
		if delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, lastErr
		case <-t.C:
		}
	}
	return zero, lastErr
}

// Retry is WithRetry for operations without a result.
func Retry(ctx context.Context, p RetryPolicy, op func(context.Context) error) error {
	_, err := WithRetry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

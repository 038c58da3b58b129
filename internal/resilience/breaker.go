package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/platform/logger"
)

type BreakerOpenError struct {
	Name  string
	Cause error
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open: %v", e.Name, e.Cause)
}

func (e *BreakerOpenError) Unwrap() error { return e.Cause }

// Breaker trips after a run of consecutive failures and rejects calls until
// the cooldown elapses. Permanent errors do not count as failures.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreaker returns nil when failures <= 0; a nil *Breaker passes calls through.
func NewBreaker(name string, failures int, cooldown time.Duration, log *logger.Logger) *Breaker {
	if failures <= 0 {
		return nil
	}
	if log == nil {
		log = logger.NewNop()
	}
	observability.BreakerState.WithLabelValues(name).Set(0)
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", stateName(from), "to", stateName(to))
			observability.BreakerState.WithLabelValues(name).Set(stateValue(to))
			observability.BreakerTransitions.WithLabelValues(name, stateName(from), stateName(to)).Inc()
		},
	})
	return &Breaker{name: name, cb: cb}
}

func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

func (b *Breaker) State() string {
	if b == nil {
		return stateName(gobreaker.StateClosed)
	}
	return stateName(b.cb.State())
}

func (b *Breaker) Open() bool {
	return b != nil && b.cb.State() == gobreaker.StateOpen
}

// Guard runs op through the breaker. Rejections are returned as permanent
// *BreakerOpenError values so that the retry loop stops.
func Guard[T any](ctx context.Context, b *Breaker, op func(context.Context) (T, error)) (T, error) {
	if b == nil {
		return op(ctx)
	}
	var zero T
	res, err := b.cb.Execute(func() (any, error) {
		return op(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, Permanent(&BreakerOpenError{Name: b.name, Cause: err})
		}
		return zero, err
	}
	v, ok := res.(T)
	if !ok && res != nil {
		return zero, fmt.Errorf("circuit breaker %s: unexpected result type %T", b.name, res)
	}
	return v, nil
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

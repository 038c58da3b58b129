package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("operation timed out")

type TimeoutError struct {
	Message string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return ErrTimeout.Error()
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = ErrTimeout.Error()
	}
	if e.After > 0 {
		return fmt.Sprintf("%s (after %s)", msg, e.After)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Timeout() bool { return true }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as fatal: the retry loop returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	var p *permanentError
	if errors.As(err, &p) {
		return err
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable regardless of its message. Store adapters
// use it for driver-classified errors (e.g. neo4j.IsRetryable).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

var DefaultRetryableSignatures = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"broken pipe",
	"service unavailable",
	"serviceunavailable",
	"connection acquisition",
	"unexpected eof",
}

// IsRetryable reports whether err should be retried. Permanent and cancelled
// errors never are; explicit markers, timeouts, retryable HTTP statuses and
// message signatures are.
func IsRetryable(err error, signatures []string) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var tr *transientError
	if errors.As(err, &tr) {
		return true
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// A zero status means the request never got a response; classify the
	// transport cause instead.
	var sc HTTPStatusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() != 0 {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if signatures == nil {
		signatures = DefaultRetryableSignatures
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range signatures {
		sig = strings.ToLower(strings.TrimSpace(sig))
		if sig != "" && strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

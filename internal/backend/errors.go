package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a backend failure for the orchestrator's
// retry/surface/abort decision.
type Kind int

const (
	// KindConfiguration: malformed request shape, unknown deployment or
	// index, rejected credential. Never retried; surfaced with the
	// offending field.
	KindConfiguration Kind = iota

	// KindTransient: rate limiting, timeout, temporary unavailability.
	// Eligible for bounded retry with backoff and jitter.
	KindTransient

	// KindFatal: anything else. Surfaced to the caller; the session
	// continues, only the failed turn lacks an answer.
	KindFatal
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified backend failure. Callers branch on Kind via
// Classify or errors.As, never on message text.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when the call never completed
	Field   string // offending field/name for configuration errors
	Message string
	cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("backend %s error (%s): %s", e.Kind, e.Field, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("backend %s error (HTTP %d): %s", e.Kind, e.Status, e.Message)
	default:
		return fmt.Sprintf("backend %s error: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.cause }

// RetriesExhausted wraps the last transient error once the bounded
// retry budget is spent. The result is fatal: the question was
// recorded but not answered.
func RetriesExhausted(attempts int, last error) *Error {
	return &Error{
		Kind:    KindFatal,
		Message: fmt.Sprintf("retries exhausted after %d attempts", attempts),
		cause:   last,
	}
}

// Classify maps any error surfaced by a backend call to its Kind.
// Unwrapped context timeouts and network timeouts count as transient;
// unrecognized errors are fatal.
func Classify(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTransient
	}
	return KindFatal
}

// classifyStatus maps an HTTP response status to a failure kind.
// 500 is deliberately fatal: the service answered and reported an
// internal error, not a temporary condition.
func classifyStatus(status int) Kind {
	switch status {
	case 400, 401, 403, 404, 422:
		return KindConfiguration
	case 408, 429, 502, 503, 504:
		return KindTransient
	default:
		return KindFatal
	}
}

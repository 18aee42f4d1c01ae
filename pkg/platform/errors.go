package platform

import (
	"errors"
	"fmt"
	"time"
)

// TransientError is a retryable platform failure (rate limit, timeout,
// 5xx). The executor retries these with backoff.
type TransientError struct {
	// Cause is the underlying error.
	Cause error

	// RetryAfter is the server-suggested wait, if any.
	RetryAfter time.Duration
}

// NewTransientError wraps a retryable failure.
func NewTransientError(cause error, retryAfter time.Duration) *TransientError {
	return &TransientError{Cause: cause, RetryAfter: retryAfter}
}

func (e *TransientError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("transient platform error (retry after %s): %v", e.RetryAfter, e.Cause)
	}
	return fmt.Sprintf("transient platform error: %v", e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// PermanentError is a non-retryable platform rejection (validation
// failure, permission denied, unknown entity). The executor fails the
// item immediately.
type PermanentError struct {
	// Code is the platform's error code, if any.
	Code string

	// Reason describes the rejection.
	Reason string
}

// NewPermanentError creates a non-retryable rejection.
func NewPermanentError(code, reason string) *PermanentError {
	return &PermanentError{Code: code, Reason: reason}
}

func (e *PermanentError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform rejected change (%s): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("platform rejected change: %s", e.Reason)
}

// IsTransient reports whether the error is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether the error is a non-retryable rejection.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

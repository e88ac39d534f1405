package objects

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a bucket or object does not exist. It is benign on delete paths.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied is returned when the credentials are not allowed to perform the operation.
	ErrAccessDenied = errors.New("access denied")
	// ErrTransient marks provider errors that are expected to succeed on retry.
	ErrTransient = errors.New("transient provider error")
	// ErrMalformedReference is returned for storage references that cannot be resolved to a bucket and key.
	ErrMalformedReference = errors.New("malformed storage reference")
)

// IsRetryable reports whether a provider call that failed with err may be retried.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAccessDenied), errors.Is(err, ErrMalformedReference):
		return false
	default:
		return true
	}
}

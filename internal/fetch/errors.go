package fetch

import (
	"errors"
	"fmt"
)

// Failure categories for fetch operations. Transient failures (timeouts,
// rate-limited upstream) are retried by the backoff wrapper; permanent
// failures (not found, malformed payload) propagate immediately.
var (
	ErrTransient = errors.New("transient fetch error")
	ErrPermanent = errors.New("permanent fetch error")
)

// Transientf wraps a formatted message as a transient failure
func Transientf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}

// Permanentf wraps a formatted message as a permanent failure
func Permanentf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPermanent, fmt.Sprintf(format, args...))
}

// Transient reports whether err is a retryable failure
func Transient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Permanent reports whether err is a non-retryable failure
func Permanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

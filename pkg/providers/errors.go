package providers

import (
	"fmt"

	"github.com/pkg/errors"
)

// FetchError is returned by provider implementations. Retryable errors
// (timeouts, 5xx, rate limits) are retried by the workflow step runner;
// non-retryable ones (malformed payloads, 4xx) fail the step immediately.
type FetchError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable fetch error.
func Transient(provider string, err error) error {
	return &FetchError{Provider: provider, Retryable: true, Err: err}
}

// Permanent wraps err as a non-retryable fetch error.
func Permanent(provider string, err error) error {
	return &FetchError{Provider: provider, Retryable: false, Err: err}
}

// IsRetryable reports whether err should be retried. Unknown error types are
// treated as retryable; only an explicit permanent fetch error stops retries
// early.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return true
}

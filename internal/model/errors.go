package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSourceUnavailable marks a network, timeout, status or render failure of one source.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrParseAmbiguity marks a candidate whose title could not be extracted.
	ErrParseAmbiguity = errors.New("parse ambiguity")
	// ErrPersistenceUnavailable marks a state store that could not be read or written.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrDeliveryFailure marks a notification that was not confirmed delivered.
	ErrDeliveryFailure = errors.New("delivery failure")
	// ErrNoSources is returned at startup when no source is enabled.
	ErrNoSources = errors.New("no sources defined")
	// ErrNotFound is returned by a StateStore when a document does not exist.
	ErrNotFound = errors.New("document not found")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

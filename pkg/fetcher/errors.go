package fetcher

import (
	"errors"
	"fmt"
)

// Common errors returned by the fetcher.
var (
	// ErrRetriesExhausted is returned when no attempt produced a usable response.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrContextCancelled is returned when the context is cancelled during backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorKind classifies a failed fetch attempt. The retry loop branches on the
// kind instead of on error types.
type ErrorKind string

const (
	// KindTransport covers connectivity, DNS, and timeout failures.
	KindTransport ErrorKind = "transport"

	// KindRateLimited covers HTTP 429 responses.
	KindRateLimited ErrorKind = "rate_limited"

	// KindBadStatus covers any non-200, non-429 response.
	KindBadStatus ErrorKind = "bad_status"

	// KindBadPayload covers bodies that do not decode as JSON.
	KindBadPayload ErrorKind = "bad_payload"

	// KindMissingField covers payloads without a vulnerabilities field.
	KindMissingField ErrorKind = "missing_field"
)

// APIError describes a rejected response with enough context for diagnostics.
type APIError struct {
	StatusCode int
	Kind       ErrorKind
	Excerpt    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("NVD %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	if e.Excerpt != "" {
		return fmt.Sprintf("NVD %s error (status %d): %s", e.Kind, e.StatusCode, e.Excerpt)
	}
	return fmt.Sprintf("NVD %s error (status %d)", e.Kind, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

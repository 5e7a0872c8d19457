package storygen

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoImage is returned by a Backend when the provider produced no image.
	ErrNoImage = errors.New("no image in response")

	// ErrEmptyResponse is returned when a provider answered without content.
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrMissingCredential is returned when a provider has no API key.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidCredential is returned when an API key does not match the
	// provider's expected format.
	ErrInvalidCredential = errors.New("invalid credential format")

	// ErrOffline is returned by the offline backend for every call.
	ErrOffline = errors.New("no generation backend available")

	// ErrStorageNotConfigured is returned when storage operations are attempted
	// without a configured storage backend.
	ErrStorageNotConfigured = errors.New("storage not configured")

	// ErrNotJSONObject is returned when no JSON object could be extracted.
	ErrNotJSONObject = errors.New("response does not contain a JSON object")
)

// RateLimitError is returned when a rate limit is hit, either locally or by
// the provider.
type RateLimitError struct {
	RetryAfter time.Duration
	LimitType  string
	Provider   Provider
	Err        error // Underlying error from the provider
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %s limit, retry after %v",
		e.Provider, e.LimitType, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRateLimitError checks if an error is a RateLimitError.
func IsRateLimitError(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Package errors provides the shared error taxonomy for the feasibility core.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Input validation errors (fatal, no report produced).
	ErrCodeInvalidLocation ErrorCode = "INVALID_LOCATION"
	ErrCodeInvalidRadius   ErrorCode = "INVALID_RADIUS"

	// Per-provider errors (non-fatal, degrade that provider's contribution).
	ErrCodeProviderTimeout         ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeProviderInvalidResponse ErrorCode = "PROVIDER_INVALID_RESPONSE"
	ErrCodeProviderUnavailable     ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeRateLimitExceeded       ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Infrastructure degradation.
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"

	// Terminal run failure.
	ErrCodeAllProvidersFailed ErrorCode = "ALL_PROVIDERS_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewInvalidLocationError creates a non-retryable input validation error.
func NewInvalidLocationError(location, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidLocation,
		Message:   "Location could not be resolved",
		Details:   fmt.Sprintf("location: %s, %s", location, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRadiusError creates a non-retryable input validation error.
func NewInvalidRadiusError(radiusMeters int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRadius,
		Message:   "Search radius must be positive",
		Details:   fmt.Sprintf("radiusMeters: %d", radiusMeters),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderTimeoutError creates a retryable provider timeout error.
func NewProviderTimeoutError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderTimeout,
		Message:   fmt.Sprintf("Provider '%s' timed out", provider),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderInvalidResponseError creates a non-retryable response error.
func NewProviderInvalidResponseError(provider, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderInvalidResponse,
		Message:   fmt.Sprintf("Provider '%s' returned an invalid response", provider),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderUnavailableError creates a non-retryable availability error.
// Unavailability is surfaced as provider status; the caller decides whether
// to re-run.
func NewProviderUnavailableError(provider string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeProviderUnavailable,
		Message:   fmt.Sprintf("Provider '%s' unavailable", provider),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitExceededError is returned when a token could not be acquired
// within the bounded wait.
func NewRateLimitExceededError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimitExceeded,
		Message:   fmt.Sprintf("Rate limit exceeded for provider '%s'", provider),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError signals that the cache backend is unreachable and
// the fetch proceeded without caching.
func NewCacheUnavailableError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Cache backend unavailable, falling back to direct fetch",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAllProvidersFailedError is the terminal failure when no provider
// produced a result.
func NewAllProvidersFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAllProvidersFailed,
		Message:   "No provider produced a result",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the ErrorCode from err, unwrapping as needed. Returns the
// empty code for non-taxonomy errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsFatal reports whether the code aborts the whole run rather than
// degrading a single provider.
func IsFatal(code ErrorCode) bool {
	switch code {
	case ErrCodeInvalidLocation, ErrCodeInvalidRadius, ErrCodeAllProvidersFailed:
		return true
	default:
		return false
	}
}

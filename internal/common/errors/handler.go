package errors

import (
	"context"
	stderrors "errors"
	"net"
	"strings"
	"time"
)

// Normalize ensures any error coming out of a provider fetch is a
// StandardError from the shared taxonomy. Context deadline and transport
// timeouts become PROVIDER_TIMEOUT; everything unclassified becomes
// PROVIDER_UNAVAILABLE for the given provider.
func Normalize(provider string, err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	if IsTimeout(err) {
		return NewProviderTimeoutError(provider)
	}

	return NewProviderUnavailableError(provider, err)
}

// IsTimeout classifies context deadline expiry and transport-level timeouts.
// The string checks cover net/http's Client.Timeout error, which is not
// unwrappable to context.DeadlineExceeded.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Client.Timeout") ||
		strings.Contains(msg, "deadline exceeded")
}

// RetryDecision captures the bounded retry policy for one provider attempt.
type RetryDecision struct {
	Retry   bool
	Backoff time.Duration
}

// ShouldRetry implements the per-run policy: a single retry on
// PROVIDER_TIMEOUT only. Invalid responses and rate-limit rejections are
// surfaced as provider status instead.
func ShouldRetry(err error, attempt, maxAttempts int) bool {
	if attempt >= maxAttempts-1 {
		return false
	}
	return IsCode(err, ErrCodeProviderTimeout)
}

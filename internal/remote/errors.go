package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a remote call that completed with a non-success status.
// The retry layer classifies failures by StatusCode.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote API error: status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the failure is worth another attempt.
// Rate limits (429), server errors (5xx), timeouts, and network
// failures are retryable; any other client error (4xx) is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return false
		}
		return true
	}

	// Timeouts, connection resets, DNS failures: no status to inspect,
	// assume transient.
	return true
}

package jobsapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrQuotaOrAuth marks upstream responses the caller cannot recover from
	// locally: bad credentials, forbidden plans or exhausted quota.
	ErrQuotaOrAuth = errors.New("upstream rejected the credential or quota")

	// ErrMalformedResponse is returned when the body is not the expected
	// top-level object with a data array.
	ErrMalformedResponse = errors.New("unexpected job search response format")
)

// QuotaError is returned for 401, 403 and 429 search responses.
type QuotaError struct {
	StatusCode int
	Body       string
}

func (e *QuotaError) Error() string {
	var reason string
	switch e.StatusCode {
	case http.StatusUnauthorized:
		reason = "API key is invalid or missing"
	case http.StatusForbidden:
		reason = "API key is not subscribed to this endpoint or the plan forbids it"
	case http.StatusTooManyRequests:
		reason = "rate limit or monthly quota exceeded"
	default:
		reason = "request refused"
	}
	return fmt.Sprintf("job search API returned status %d: %s", e.StatusCode, reason)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaOrAuth }

// StatusError is returned for any other non-2xx search response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("job search API returned status %d: %s", e.StatusCode, e.Body)
}

func isQuotaStatus(code int) bool {
	return code == http.StatusUnauthorized ||
		code == http.StatusForbidden ||
		code == http.StatusTooManyRequests
}

// retryable reports whether a failed page request should be attempted again.
func retryable(err error) bool {
	if errors.Is(err, ErrQuotaOrAuth) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return true
}

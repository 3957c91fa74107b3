package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// AuthError indicates a request needing a bearer token was attempted
// without one, or the server rejected the token.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// IsAuthError reports whether err (or any error in its chain) is an
// AuthError or a response refusing the bearer token.
func IsAuthError(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	return IsTokenRejected(err)
}

// IsNotFound reports whether err is a 404 or 410 response.
func IsNotFound(err error) bool {
	code := statusCode(err)
	return code == http.StatusNotFound || code == http.StatusGone
}

// IsTokenRejected reports whether err is a 401 or 403 response. The server
// answers 403 for a missing or invalid token.
func IsTokenRejected(err error) bool {
	code := statusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsServerUnavailable reports whether err is a 503 response.
func IsServerUnavailable(err error) bool {
	return statusCode(err) == http.StatusServiceUnavailable
}

func statusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// retryable reports whether a response status is worth another attempt.
func retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

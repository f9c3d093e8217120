package marketplace

import (
	"errors"
	"fmt"
)

// AuthError means the credentials were rejected and a refresh did not help.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("marketplace authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError is returned for HTTP 429 after the configured delay.
type RateLimitError struct{}

func (e *RateLimitError) Error() string { return "marketplace rate limit exceeded" }

// NetworkError wraps transport failures, including timeouts.
type NetworkError struct {
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("marketplace request timed out: %v", e.Err)
	}
	return fmt.Sprintf("marketplace request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError carries an upstream error message: a bad status, an undecodable
// body or a GraphQL error payload.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("marketplace api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("marketplace api error: %s", e.Message)
}

// IsRetryable reports whether err is a transient condition.
func IsRetryable(err error) bool {
	var rateLimit *RateLimitError
	var network *NetworkError
	return errors.As(err, &rateLimit) || errors.As(err, &network)
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var auth *AuthError
	return errors.As(err, &auth)
}

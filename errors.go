package moovit

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dortort/moovit-client/known"
	"github.com/dortort/moovit-client/session"
)

var (
	ErrNotInitialized    = session.ErrNotInitialized
	ErrPollLimitExceeded = errors.New("route result poll limit exceeded")
)

// AuthenticationError is returned when the WAF credential can't be
// acquired.
type AuthenticationError = session.AuthenticationError

// UnknownAliasError is returned for names not in the location
// registry.
type UnknownAliasError = known.UnknownAliasError

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error %d at %s", e.StatusCode, e.Endpoint)
}

// TokenExpiredError is returned when the API rejects the credential
// (HTTP 401).
type TokenExpiredError struct {
	Endpoint string
}

func (e *TokenExpiredError) Error() string {
	return "WAF token has expired"
}

// RateLimitError is returned for HTTP 429. It unwraps to its APIError.
type RateLimitError struct {
	APIError
	RetryAfter time.Duration
}

func newRateLimitError(endpoint string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		APIError: APIError{
			StatusCode: http.StatusTooManyRequests,
			Endpoint:   endpoint,
			Message:    fmt.Sprintf("Rate limit exceeded at %s", endpoint),
		},
		RetryAfter: retryAfter,
	}
}

func (e *RateLimitError) Unwrap() error {
	return &e.APIError
}

type LocationNotFoundError struct {
	Query string
}

func (e *LocationNotFoundError) Error() string {
	return fmt.Sprintf("No locations found for %q", e.Query)
}

type RouteSearchError struct {
	Message string
	Err     error
}

func (e *RouteSearchError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RouteSearchError) Unwrap() error {
	return e.Err
}

// ProtobufError is returned when a protobuf payload can't be decoded.
type ProtobufError struct {
	Message string
	Err     error
}

func (e *ProtobufError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProtobufError) Unwrap() error {
	return e.Err
}

// statusOf extracts the HTTP status carried by err, if any.
func statusOf(err error) (int, bool) {
	var expired *TokenExpiredError
	if errors.As(err, &expired) {
		return http.StatusUnauthorized, true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

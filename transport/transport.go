// Package transport carries API requests to Moovit. Requests are
// either executed inside the authenticated browser page (see the
// session package) or replayed over plain HTTP with the session
// cookie.
package transport

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response to a Request. Non-2xx statuses are reported here rather
// than as errors, so callers can map them.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// A thing capable of executing API requests on behalf of a session.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

func (f Func) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RetryAfter parses the Retry-After header as either delay seconds or
// an HTTP date. Returns 0 when absent or unparseable.
func (r *Response) RetryAfter(now time.Time) time.Duration {
	if r.Header == nil {
		return 0
	}
	value := strings.TrimSpace(r.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil && when.After(now) {
		return when.Sub(now)
	}
	return 0
}

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/dortort/moovit-client/logging"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultMaxSize = 16 << 20 // 16 MB
)

// CredentialFunc returns the session cookie to attach to requests.
type CredentialFunc func(ctx context.Context) (*http.Cookie, error)

// HTTP executes requests with a plain HTTP client, replaying the
// session cookie and browser user agent instead of running them in
// the browser page.
type HTTP struct {
	Client     *http.Client
	Credential CredentialFunc
	UserAgent  string
	MaxSize    int
}

func NewHTTP(credential CredentialFunc, userAgent string) *HTTP {
	return &HTTP{
		Client: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		Credential: credential,
		UserAgent:  userAgent,
		MaxSize:    DefaultMaxSize,
	}
}

func (h *HTTP) Do(ctx context.Context, r *Request) (*Response, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	if h.Credential != nil {
		cookie, err := h.Credential(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting credential: %w", err)
		}
		if cookie != nil {
			req.AddCookie(cookie)
		} else {
			logging.FromContext(ctx).Debug("no session cookie to replay", slog.String("url", r.URL))
		}
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if h.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, int64(h.MaxSize)+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if h.MaxSize > 0 && len(data) > h.MaxSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", r.URL, h.MaxSize)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

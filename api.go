package moovit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/dortort/moovit-client/logging"
	"github.com/dortort/moovit-client/transport"
)

// api is the single path all requests take to Moovit. It applies
// headers, rate limiting and retries, and maps failed statuses to
// errors.
type api struct {
	cfg       ResolvedConfig
	transport transport.Transport
	limiter   *rate.Limiter
	logger    *slog.Logger
	refresh   func(ctx context.Context) error
	timeNow   func() time.Time
}

type apiRequest struct {
	method   string
	endpoint string
	query    url.Values
	body     interface{}
	protobuf bool
}

func newAPI(cfg ResolvedConfig, t transport.Transport, refresh func(context.Context) error, logger *slog.Logger) *api {
	a := &api{
		cfg:       cfg,
		transport: t,
		logger:    logger,
		refresh:   refresh,
		timeNow:   time.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return a
}

func (a *api) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	resp, err := a.do(ctx, &apiRequest{method: "GET", endpoint: endpoint, query: query})
	if err != nil {
		return err
	}
	return decodeJSON(resp.Body, endpoint, out)
}

func (a *api) postJSON(ctx context.Context, endpoint string, body interface{}, out interface{}) error {
	resp, err := a.do(ctx, &apiRequest{method: "POST", endpoint: endpoint, body: body})
	if err != nil {
		return err
	}
	return decodeJSON(resp.Body, endpoint, out)
}

// postProtobuf posts a JSON body and returns the raw protobuf reply.
func (a *api) postProtobuf(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	resp, err := a.do(ctx, &apiRequest{method: "POST", endpoint: endpoint, body: body, protobuf: true})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func decodeJSON(data []byte, endpoint string, out interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}
	return nil
}

func (a *api) do(ctx context.Context, req *apiRequest) (*transport.Response, error) {
	if !a.cfg.Retry.Enabled() {
		return a.doOnce(ctx, req)
	}

	return Retry(ctx, a.cfg.Retry, func() (*transport.Response, error) {
		resp, err := a.doOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}

		var expired *TokenExpiredError
		if errors.As(err, &expired) && a.refresh != nil {
			if refreshErr := a.refresh(ctx); refreshErr != nil {
				return nil, backoff.Permanent(errors.Join(err, refreshErr))
			}
		}
		return nil, err
	}, func(err error, delay time.Duration) {
		a.logger.Warn("retrying request",
			slog.String("endpoint", req.endpoint),
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))
	})
}

func (a *api) doOnce(ctx context.Context, req *apiRequest) (*transport.Response, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	headers := BuildHeaders(a.cfg)
	if req.protobuf {
		headers = BuildProtobufHeaders(a.cfg)
	}

	var body []byte
	if req.body != nil {
		var err error
		body, err = json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encoding request to %s: %w", req.endpoint, err)
		}
		headers["content-type"] = "application/json"
	}

	u := strings.TrimRight(a.cfg.BaseURL, "/") + req.endpoint
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	start := a.timeNow()
	resp, err := a.transport.Do(logging.WithLogger(ctx, a.logger), &transport.Request{
		Method:  req.method,
		URL:     u,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.endpoint, err)
	}

	a.logger.Debug("api request",
		slog.String("method", req.method),
		slog.String("endpoint", req.endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", a.timeNow().Sub(start)))

	if resp.OK() {
		return resp, nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, &TokenExpiredError{Endpoint: req.endpoint}
	case http.StatusTooManyRequests:
		return nil, newRateLimitError(req.endpoint, resp.RetryAfter(a.timeNow()))
	default:
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: req.endpoint}
	}
}

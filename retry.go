package moovit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultRetryInitialDelay = 1 * time.Second
	DefaultRetryMaxDelay     = 30 * time.Second
)

// RetryPolicy controls retries of failed API requests. Retries are
// off unless MaxRetries is positive. The delay starts at InitialDelay
// and doubles up to MaxDelay.
type RetryPolicy struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

func (p RetryPolicy) Enabled() bool {
	return p.MaxRetries > 0
}

func (p RetryPolicy) validate() error {
	if p.MaxRetries < 0 || p.InitialDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("retry policy must not be negative")
	}
	return nil
}

func (p RetryPolicy) backOff(ctx context.Context, hint *retryAfterBackOff) backoff.BackOff {
	initial := p.InitialDelay
	if initial == 0 {
		initial = DefaultRetryInitialDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay == 0 {
		maxDelay = DefaultRetryMaxDelay
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	hint.BackOff = backoff.WithMaxRetries(b, uint64(p.MaxRetries))
	return backoff.WithContext(hint, ctx)
}

// retryAfterBackOff waits at least as long as the server asked for in
// the last RateLimitError.
type retryAfterBackOff struct {
	backoff.BackOff
	minDelay time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d != backoff.Stop && b.minDelay > d {
		d = b.minDelay
	}
	b.minDelay = 0
	return d
}

// Retry calls op until it succeeds, fails permanently, or the policy
// runs out of retries. Wrap an error with backoff.Permanent to stop
// early. A RateLimitError delays the next attempt by at least its
// RetryAfter. notify, if set, is told about each failure before
// sleeping.
func Retry[T any](ctx context.Context, p RetryPolicy, op func() (T, error), notify func(error, time.Duration)) (T, error) {
	hint := &retryAfterBackOff{}
	return backoff.RetryNotifyWithData(func() (T, error) {
		value, err := op()
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) {
			hint.minDelay = rateErr.RetryAfter
		}
		return value, err
	}, p.backOff(ctx, hint), notify)
}

// IsRetryable reports whether a failed request might succeed if
// repeated: rate limiting, expired credentials, server errors and
// transport failures.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rateErr *RateLimitError
	var expiredErr *TokenExpiredError
	if errors.As(err, &rateErr) || errors.As(err, &expiredErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}

	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return false
	}

	return true
}

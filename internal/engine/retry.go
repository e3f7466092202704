package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig shapes the exponential backoff around an upstream call.
// MaxRetries counts attempts after the first one.
type RetryConfig struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig suits one-shot upstream calls with nothing behind them.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     10 * time.Second,
	Multiplier:  2.0,
}

// CaptionRetryConfig is shorter: the caption step has fallbacks behind it.
var CaptionRetryConfig = RetryConfig{
	MaxRetries:  1,
	InitialWait: 300 * time.Millisecond,
	MaxWait:     2 * time.Second,
	Multiplier:  2.0,
}

func (rc RetryConfig) backOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = rc.InitialWait
	bo.MaxInterval = rc.MaxWait
	if rc.Multiplier > 0 {
		bo.Multiplier = rc.Multiplier
	}
	bo.RandomizationFactor = 0.2
	return bo
}

// RetryDo runs fn until it succeeds, fails with a non-transient error, the
// attempts run out or ctx ends.
func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	attempt := 0
	op := func() (T, error) {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		attempt++
		v, err := fn()
		if err != nil && !isRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(rc.backOff()),
		backoff.WithMaxTries(uint(max(rc.MaxRetries, 0)+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.Debug("retrying", slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.Any("error", err))
		}),
	)
}

// RetryHTTP sends the request built by fn, turning retryable statuses into
// errors so they are retried. Other statuses are left for the caller.
func RetryHTTP(ctx context.Context, rc RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return RetryDo(ctx, rc, func() (*http.Response, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		if isRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

// StatusError reports an unexpected upstream HTTP status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// CheckStatus returns a *StatusError for any non-2xx code.
func CheckStatus(code int) error {
	if code < 200 || code > 299 {
		return &StatusError{StatusCode: code}
	}
	return nil
}

// IsTransient reports whether err is a network or upstream failure worth
// retrying or falling through to another source.
func IsTransient(err error) bool {
	return isRetryable(err)
}

func isRetryable(err error) bool {
	var (
		statusErr *StatusError
		opErr     *net.OpError
		dnsErr    *net.DNSError
		netErr    net.Error
	)
	switch {
	case errors.As(err, &statusErr):
		return isRetryableStatus(statusErr.StatusCode)
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return true
	case errors.As(err, &netErr):
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

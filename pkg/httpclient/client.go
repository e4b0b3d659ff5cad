package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Config holds outbound HTTP client configuration.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns the settings used for identity provider calls.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 20,
	}
}

// New returns an *http.Client with pooled connections whose transport
// retries idempotent requests on network errors and 5xx responses.
// Token exchanges are POSTs and are never retried.
func New(cfg Config) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{
		Transport: &retryTransport{next: transport, cfg: cfg},
		Timeout:   cfg.Timeout,
	}
}

type retryTransport struct {
	next http.RoundTripper
	cfg  Config
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !idempotent(req) {
		return t.next.RoundTrip(req)
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; attempt <= t.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(req.Context(), t.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		resp, err = t.next.RoundTrip(req)
		if err != nil {
			if isRetryableError(err) && attempt < t.cfg.MaxRetries {
				continue
			}
			return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt+1, err)
		}

		// 501 Not Implemented will not change on retry.
		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented && attempt < t.cfg.MaxRetries {
			resp.Body.Close()
			continue
		}
		return resp, nil
	}
	return resp, err
}

func (t *retryTransport) backoff(attempt int) time.Duration {
	wait := t.cfg.RetryWaitMin * time.Duration(1<<uint(attempt-1))
	if wait > t.cfg.RetryWaitMax {
		wait = t.cfg.RetryWaitMax
	}
	return wait
}

func idempotent(req *http.Request) bool {
	return (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

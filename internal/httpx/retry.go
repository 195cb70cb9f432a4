// Package httpx holds the outbound HTTP plumbing shared by the Google,
// push and chat clients.
package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"workflow/pkg/logx"
)

const (
	DefaultRetries = 3
	DefaultBackoff = time.Second

	maxRetryAfter = 30 * time.Second
)

// RetryTransport retries requests that hit 429 or a network error,
// waiting Backoff, then twice that, and so on. Other responses, including
// 5xx, are returned as-is so callers can classify them.
//
// Requests whose body cannot be replayed (no GetBody) are never retried.
// An optional Limiter paces every attempt.
type RetryTransport struct {
	Base    http.RoundTripper
	Retries int
	Backoff time.Duration
	Limiter *rate.Limiter
	Log     logx.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryTransport wraps base (http.DefaultTransport when nil) with the
// default policy: 3 retries starting at 1s.
func NewRetryTransport(base http.RoundTripper, limiter *rate.Limiter, log logx.Logger) *RetryTransport {
	return &RetryTransport{Base: base, Retries: DefaultRetries, Backoff: DefaultBackoff, Limiter: limiter, Log: log}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	sleep := t.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	ctx := req.Context()
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	backoff := t.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	for attempt := 0; ; attempt++ {
		if t.Limiter != nil {
			if err := t.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		r := req
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r = req.Clone(ctx)
			r.Body = body
		}

		resp, err := base.RoundTrip(r)
		retry := false
		wait := backoff
		switch {
		case err != nil:
			retry = isNetworkError(err) && ctx.Err() == nil
		case resp.StatusCode == http.StatusTooManyRequests:
			retry = true
			if ra := retryAfter(resp.Header.Get("Retry-After")); ra > wait {
				wait = min(ra, maxRetryAfter)
			}
		}
		if !retry || attempt >= t.Retries || !replayable {
			return resp, err
		}

		if resp != nil {
			_ = resp.Body.Close()
		}
		if !t.Log.IsZero() {
			t.Log.Debug("retrying request",
				logx.String("host", req.URL.Host),
				logx.Int("attempt", attempt+1),
				logx.Duration("wait", wait),
				logx.Err(err),
			)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe) || errors.Is(err, net.ErrClosed)
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewClient builds an http.Client using the retry transport.
func NewClient(timeout time.Duration, limiter *rate.Limiter, log logx.Logger) *http.Client {
	return &http.Client{Timeout: timeout, Transport: NewRetryTransport(nil, limiter, log)}
}

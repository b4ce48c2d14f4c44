package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Doer is the transport contract carrier clients depend on. HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// StatusError is returned when every attempt ended with a retryable status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return "resilience: upstream responded " + e.Status
}

// HTTPClient sends carrier requests with a per-attempt timeout, jittered retries and
// an optional circuit breaker. 5xx and 429 answers are retried; anything else is handed back
// to the caller untouched. Throttling does not count as a breaker failure.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
}

const drainLimit = 4 << 10

type noRetryKey struct{}

// WithoutRetry marks requests sent with ctx as unsafe to repeat: Do makes a single
// attempt whatever MaxAttempts says.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

func retriesAllowed(ctx context.Context) bool {
	off, _ := ctx.Value(noRetryKey{}).(bool)
	return !off
}

// Do sends req until it succeeds, attempts run out, or the breaker opens. The body
// is buffered once so every attempt sends the same bytes.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	payload, err := bufferBody(req)
	if err != nil {
		return nil, fmt.Errorf("resilience: buffer request body: %w", err)
	}
	target := "unguarded"
	if cl.Breaker != nil {
		target = cl.Breaker.Target()
	}
	attempts := max(cl.MaxAttempts, 1)
	if !retriesAllowed(ctx) {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if !cl.allow(ctx) {
			OutboundAttempts.WithLabelValues(target, "rejected").Inc()
			if lastErr == nil {
				return nil, ErrOpenCircuit
			}
			return nil, fmt.Errorf("%w after: %w", ErrOpenCircuit, lastErr)
		}

		resp, err := cl.attempt(ctx, req, payload)
		wait := Backoff(cl.BaseBackoff, attempt, cl.Jitter)
		switch {
		case err != nil:
			cl.report(ctx, false)
			OutboundAttempts.WithLabelValues(target, "transport_error").Inc()
			lastErr = err
		case resp.StatusCode == http.StatusTooManyRequests:
			cl.report(ctx, true)
			OutboundAttempts.WithLabelValues(target, "throttled").Inc()
			wait = max(wait, retryAfter(resp.Header.Get("Retry-After")))
			lastErr = discard(resp)
		case resp.StatusCode >= http.StatusInternalServerError:
			cl.report(ctx, false)
			OutboundAttempts.WithLabelValues(target, "server_error").Inc()
			lastErr = discard(resp)
		default:
			cl.report(ctx, true)
			OutboundAttempts.WithLabelValues(target, "ok").Inc()
			return resp, nil
		}

		if attempt == attempts {
			break
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (cl HTTPClient) allow(ctx context.Context) bool {
	return cl.Breaker == nil || cl.Breaker.Allow(ctx)
}

func (cl HTTPClient) report(ctx context.Context, success bool) {
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, success)
	}
}

// attempt runs one round trip. Its deadline stays armed until the caller closes
// the body, so slow reads are bounded too.
func (cl HTTPClient) attempt(ctx context.Context, req *http.Request, payload []byte) (*http.Response, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}

	out := req.Clone(callCtx)
	if payload != nil {
		out.Body = io.NopCloser(bytes.NewReader(payload))
		out.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(payload)), nil }
		out.ContentLength = int64(len(payload))
	}
	resp, err := cl.Client.Do(out)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func discard(resp *http.Response) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
	return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
}

// retryAfter understands the delta-seconds form only; dates are ignored.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxBackoff)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

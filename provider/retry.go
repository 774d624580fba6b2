// Package provider wraps the OpenAI Responses API for the simulation: retry
// with backoff, a circuit breaker, request pacing and structured output.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// ResponsesAPI is the subset of the OpenAI client used here; *client.Responses
// satisfies it.
type ResponsesAPI interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

// RetryPolicy controls how failed calls are retried. Waits are indexed by
// attempt; the last entry is reused when the list is short.
type RetryPolicy struct {
	MaxAttempts      int
	RateLimitWaits   []time.Duration
	ServerErrorWaits []time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      3,
		RateLimitWaits:   []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second},
		ServerErrorWaits: []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second},
	}
}

// NoRetry makes a single attempt.
func NoRetry() RetryPolicy { return RetryPolicy{MaxAttempts: 1} }

func (p RetryPolicy) waitFor(err error, attempt int) (time.Duration, bool) {
	var waits []time.Duration
	switch {
	case isRateLimitError(err):
		waits = p.RateLimitWaits
	case isServerError(err):
		waits = p.ServerErrorWaits
	default:
		return 0, false
	}
	if len(waits) == 0 {
		return 0, true
	}
	if attempt >= len(waits) {
		attempt = len(waits) - 1
	}
	return waits[attempt], true
}

// Retry runs call until it succeeds, fails with a non-retryable error, or
// MaxAttempts is used up. Waits between attempts end early when ctx is done.
func Retry[T any](ctx context.Context, p RetryPolicy, call func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(1, p.MaxAttempts)
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := call(ctx)
		if err == nil {
			return v, nil
		}
		wait, retryable := p.waitFor(err, attempt)
		if !retryable || attempt == attempts-1 {
			return zero, err
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("failed after %d attempts due to OpenAI API issues", attempts)
}

// CallWithRetry issues one Responses API request under p.
func CallWithRetry(ctx context.Context, api ResponsesAPI, p RetryPolicy, params responses.ResponseNewParams) (*responses.Response, error) {
	return Retry(ctx, p, func(ctx context.Context) (*responses.Response, error) {
		return api.New(ctx, params)
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}

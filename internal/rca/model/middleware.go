package model

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// RetryUnary retries a transient provider failure up to maxAttempts times
// with exponential backoff, classifying ErrRateLimited (and any error the
// classify func reports as retryable) as transient. Non-retryable errors
// and context cancellation pass straight through.
func RetryUnary(maxAttempts int, base time.Duration, retryable func(error) bool) UnaryMiddleware {
	if retryable == nil {
		retryable = func(err error) bool { return err == ErrRateLimited }
	}
	return func(next UnaryHandler) UnaryHandler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			var lastErr error
			for attempt := 0; attempt < maxAttempts; attempt++ {
				resp, err := next(ctx, req)
				if err == nil {
					return resp, nil
				}
				lastErr = err
				if !retryable(err) {
					return nil, err
				}
				delay := base * time.Duration(math.Pow(2, float64(attempt)))
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return nil, lastErr
		}
	}
}

// RateLimitUnary bounds outbound request rate to the gateway's configured
// provider, smoothing bursty ReAct loops across concurrent turns before the
// underlying provider itself rate-limits the process.
func RateLimitUnary(limiter *rate.Limiter) UnaryMiddleware {
	return func(next UnaryHandler) UnaryHandler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return next(ctx, req)
		}
	}
}

// NewDefaultLimiter builds a token-bucket limiter allowing ratePerSecond
// sustained requests with a burst of the same size.
func NewDefaultLimiter(ratePerSecond float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(ratePerSecond), int(math.Max(1, ratePerSecond)))
}

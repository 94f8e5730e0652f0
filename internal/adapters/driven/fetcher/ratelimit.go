package fetcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRetryInterval is the minimum spacing between download attempts.
const DefaultRetryInterval = 2 * time.Second

// maxBackoff caps a server-requested Retry-After.
const maxBackoff = 60 * time.Second

// RetryLimiter paces download attempts.
// It uses a token bucket with an optional backoff for 429/503 responses.
type RetryLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRetryLimiter allows one attempt per interval. The first attempt is
// never delayed.
func NewRetryLimiter(interval time.Duration) *RetryLimiter {
	return &RetryLimiter{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Wait blocks until another attempt may start.
// It also respects any backoff period set by Backoff.
func (r *RetryLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		timer := time.NewTimer(time.Until(retryAt))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// Backoff delays the next attempt by d, capped at one minute.
func (r *RetryLimiter) Backoff(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = time.Now().Add(min(d, maxBackoff))
}

package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx ends
	Wait(ctx context.Context) error
}

// Interval spaces requests evenly, allowing a small burst
type Interval struct {
	limiter *rate.Limiter
}

// NewInterval allows one request every interval with the given burst.
// A non-positive interval disables limiting.
func NewInterval(interval time.Duration, burst int) *Interval {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Interval{limiter: rate.NewLimiter(limit, burst)}
}

// NewPerMinute allows n requests per minute; n <= 0 disables limiting
func NewPerMinute(n int) *Interval {
	if n <= 0 {
		return NewInterval(0, 1)
	}
	return NewInterval(time.Minute/time.Duration(n), 1)
}

// Allow checks if a request can proceed without waiting
func (l *Interval) Allow() bool {
	return l.limiter.Allow()
}

// Wait blocks until a request is allowed
func (l *Interval) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Unlimited reports whether the limiter never blocks
func (l *Interval) Unlimited() bool {
	return l.limiter.Limit() == rate.Inf
}

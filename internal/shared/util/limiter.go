package util

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrThrottled reports that a token could not be had before the caller's
// deadline.
var ErrThrottled = errors.New("rate limit exceeded before deadline")

// Limiter is a token bucket shared by every session of a resolver.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter allows perSecond events with the given burst. A burst below one
// is raised to one so Wait can ever succeed.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{inner: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow takes n tokens if they are available right now.
func (l *Limiter) Allow(n int) bool {
	return l.inner.AllowN(time.Now(), n)
}

// Wait blocks until a token is available. It fails with ErrThrottled when the
// wait would outlast ctx's deadline and with ctx.Err() when ctx ends first.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.inner.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrThrottled, context.DeadlineExceeded)
	}
	return nil
}

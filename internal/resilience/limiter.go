package resilience

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a limiter denies a permit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter grants permits for calls. Acquire returns nil when the call may
// proceed and an error wrapping ErrRateLimited when it may not. It must not
// block longer than its own configured bound.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// TokenBucket is an in-process Limiter backed by a token bucket.
type TokenBucket struct {
	limiter *rate.Limiter
	maxWait time.Duration
}

// NewTokenBucket creates a token bucket refilling perSecond tokens up to burst.
// maxWait bounds how long Acquire waits for a token; zero fails fast.
func NewTokenBucket(perSecond float64, burst int, maxWait time.Duration) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		maxWait: maxWait,
	}
}

// Acquire takes a token, waiting at most maxWait for one.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	if b.maxWait <= 0 {
		if b.limiter.Allow() {
			return nil
		}
		return ErrRateLimited
	}

	wctx, cancel := context.WithTimeout(ctx, b.maxWait)
	defer cancel()
	if err := b.limiter.Wait(wctx); err != nil {
		// Wait fails without consuming a token when the deadline cannot be met.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrRateLimited
	}
	return nil
}

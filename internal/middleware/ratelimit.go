package middleware

import (
	"net/http"
	"sync"

	"beacon/internal/common"
	"beacon/internal/resilience"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a per-IP token bucket rate limiter for the HTTP API.
type RateLimiter struct {
	limiters map[string]*resilience.TokenBucket
	mu       sync.RWMutex
	rps      float64
	burst    int
}

// NewRateLimiter creates a new RateLimiter. A non-positive rps disables it.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*resilience.TokenBucket),
		rps:      rps,
		burst:    burst,
	}
}

// getLimiter retrieves or creates a token bucket for the given IP.
func (rl *RateLimiter) getLimiter(ip string) *resilience.TokenBucket {
	rl.mu.RLock()
	limiter, exists := rl.limiters[ip]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = rl.limiters[ip]; exists {
		return limiter
	}

	limiter = resilience.NewTokenBucket(rl.rps, rl.burst, 0)
	rl.limiters[ip] = limiter
	return limiter
}

// Middleware returns a Gin middleware that enforces rate limiting.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rps <= 0 {
			c.Next()
			return
		}
		if err := rl.getLimiter(c.ClientIP()).Acquire(c.Request.Context()); err != nil {
			common.Error(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

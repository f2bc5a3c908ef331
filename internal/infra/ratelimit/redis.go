package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"beacon/internal/resilience"

	"github.com/redis/go-redis/v9"
)

var _ resilience.Limiter = (*RedisLimiter)(nil)

// slidingWindow trims expired permits, counts the rest and records a new one
// in a single step. Scores are microseconds.
//
// KEYS[1] window key
// ARGV: now, window start, max permits, member, key TTL in milliseconds
var slidingWindow = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`)

// RedisLimiter is a resilience.Limiter shared by every process that uses the
// same Redis and key. It uses a sliding window: each granted permit is a
// sorted-set member scored by its timestamp.
type RedisLimiter struct {
	client       redis.UniversalClient
	key          string
	maxPerWindow int
	window       time.Duration
	log          *slog.Logger
}

// NewClient creates the Redis client used by shared limiters.
func NewClient(redisAddr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
}

// NewRedisLimiter creates a limiter allowing maxPerWindow permits per window for key.
func NewRedisLimiter(client redis.UniversalClient, key string, maxPerWindow int, window time.Duration, log *slog.Logger) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisLimiter{
		client:       client,
		key:          fmt.Sprintf("beacon:ratelimit:%s", key),
		maxPerWindow: maxPerWindow,
		window:       window,
		log:          log,
	}
}

// Acquire grants a permit if fewer than maxPerWindow were granted within the window.
// When Redis is unreachable it fails open: a notification should not be dropped
// because the limiter's backing store is down.
func (r *RedisLimiter) Acquire(ctx context.Context) error {
	allowed, err := r.allow(ctx)
	if err != nil {
		r.log.Warn("shared rate limit check failed, proceeding without limit", "key", r.key, "error", err)
		return nil
	}
	if !allowed {
		return resilience.ErrRateLimited
	}
	return nil
}

func (r *RedisLimiter) allow(ctx context.Context) (bool, error) {
	now := time.Now()

	// Unique member so concurrent permits in the same microsecond don't collide
	randBytes := make([]byte, 4)
	_, _ = rand.Read(randBytes)
	member := fmt.Sprintf("%d:%s", now.UnixNano(), hex.EncodeToString(randBytes))

	granted, err := slidingWindow.Run(ctx, r.client, []string{r.key},
		now.UnixMicro(),
		now.Add(-r.window).UnixMicro(),
		r.maxPerWindow,
		member,
		(r.window + time.Minute).Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("checking rate limit: %w", err)
	}
	return granted == 1, nil
}

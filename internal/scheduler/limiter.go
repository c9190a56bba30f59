package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"btc-scenario-lab/internal/observability"
)

// DefaultStartsPerSecond caps how many runs may start each second.
const DefaultStartsPerSecond = 5

// Limiter throttles run starts.
type Limiter interface {
	// Wait blocks until a start is allowed or ctx is done.
	Wait(ctx context.Context) error
}

// LocalLimiter is a process-local token bucket.
type LocalLimiter struct {
	limiter *rate.Limiter
}

// NewLocalLimiter allows perSecond starts per second with the given burst.
func NewLocalLimiter(perSecond, burst int) *LocalLimiter {
	if perSecond <= 0 {
		perSecond = DefaultStartsPerSecond
	}
	if burst <= 0 {
		burst = 1
	}
	return &LocalLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a token is available.
func (l *LocalLimiter) Wait(ctx context.Context) error {
	if l.limiter.Tokens() < 1 {
		observability.RecordRateLimitWait()
	}
	return l.limiter.Wait(ctx)
}

// RedisLimiter shares the start budget across processes through Redis.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	key     string
	limit   redis_rate.Limit
}

// NewRedisLimiter allows perSecond starts per second for all processes using key.
func NewRedisLimiter(rdb *goredis.Client, key string, perSecond int) *RedisLimiter {
	if perSecond <= 0 {
		perSecond = DefaultStartsPerSecond
	}
	if key == "" {
		key = "scheduler:starts"
	}
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		key:     key,
		limit:   redis_rate.PerSecond(perSecond),
	}
}

// Wait polls the shared bucket, sleeping for the advised retry interval.
func (l *RedisLimiter) Wait(ctx context.Context) error {
	for {
		res, err := l.limiter.Allow(ctx, l.key, l.limit)
		if err != nil {
			return fmt.Errorf("rate limit check failed: %w", err)
		}
		if res.Allowed > 0 {
			return nil
		}

		observability.RecordRateLimitWait()
		wait := res.RetryAfter
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Compile-time interface checks.
var (
	_ Limiter = (*LocalLimiter)(nil)
	_ Limiter = (*RedisLimiter)(nil)
)

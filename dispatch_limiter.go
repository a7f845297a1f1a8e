package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	errDispatchRateLimited        = errors.New("code dispatch rate limited")
	errDispatchLimiterUnavailable = errors.New("dispatch limiter unavailable")
)

// dispatchLimiter enforces a fixed-window dispatch budget per
// identifier. A zero MaxAttempts disables throttling entirely.
type dispatchLimiter struct {
	redis  redis.UniversalClient
	config DispatchConfig
}

func newDispatchLimiter(redisClient redis.UniversalClient, cfg DispatchConfig) *dispatchLimiter {
	return &dispatchLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *dispatchLimiter) Check(ctx context.Context, identifier string) error {
	if l.config.MaxAttempts <= 0 {
		return nil
	}

	key := dispatchLimiterKey(identifier)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errDispatchLimiterUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", errDispatchLimiterUnavailable, err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return errDispatchRateLimited
	}

	return nil
}

// Reset drops the window after a confirmed verification so the next
// login starts with a clean budget.
func (l *dispatchLimiter) Reset(ctx context.Context, identifier string) error {
	if l.config.MaxAttempts <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, dispatchLimiterKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errDispatchLimiterUnavailable, err)
	}
	return nil
}

func dispatchLimiterKey(identifier string) string {
	return "adl:" + identifier
}

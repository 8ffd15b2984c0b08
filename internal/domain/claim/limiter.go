package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefixAttempts = "claim_code_attempts:"

// AttemptLimiter counts wrong codes per claim and action in Redis. A nil
// client disables it.
type AttemptLimiter struct {
	redis  *redis.Client
	max    int64
	window time.Duration
}

func NewAttemptLimiter(client *redis.Client, max int, window time.Duration) *AttemptLimiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &AttemptLimiter{redis: client, max: int64(max), window: window}
}

func attemptsKey(claimID uuid.UUID, a Action) string {
	return keyPrefixAttempts + claimID.String() + ":" + string(a)
}

// Allow returns ErrTooManyAttempts once the failure budget is spent.
// Redis errors fail open so an outage never blocks deliveries.
func (l *AttemptLimiter) Allow(ctx context.Context, claimID uuid.UUID, a Action) error {
	if l == nil || l.redis == nil {
		return nil
	}
	n, err := l.redis.Get(ctx, attemptsKey(claimID, a)).Int64()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Str("claim_id", claimID.String()).Msg("attempt limiter unavailable")
		return nil
	}
	if n >= l.max {
		return ErrTooManyAttempts
	}
	return nil
}

// Fail records one wrong code. The window starts at the first failure.
func (l *AttemptLimiter) Fail(ctx context.Context, claimID uuid.UUID, a Action) error {
	if l == nil || l.redis == nil {
		return nil
	}
	key := attemptsKey(claimID, a)
	n, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}
	if n == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("set attempt window: %w", err)
		}
	}
	log.Warn().
		Str("claim_id", claimID.String()).
		Str("action", string(a)).
		Int64("failures", n).
		Msg("wrong claim code")
	return nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, claimID uuid.UUID, a Action) error {
	if l == nil || l.redis == nil {
		return nil
	}
	return l.redis.Del(ctx, attemptsKey(claimID, a)).Err()
}

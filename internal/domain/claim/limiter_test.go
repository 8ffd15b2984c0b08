package claim

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (*AttemptLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewAttemptLimiter(client, 5, 15*time.Minute), mr
}

func TestLimiterBlocksAfterMaxFailures(t *testing.T) {
	l, mr := newLimiter(t)
	ctx := context.Background()
	id := uuid.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Allow(ctx, id, ActionStart))
		require.NoError(t, l.Fail(ctx, id, ActionStart))
	}
	assert.ErrorIs(t, l.Allow(ctx, id, ActionStart), ErrTooManyAttempts)
	assert.NoError(t, l.Allow(ctx, id, ActionDeliver), "actions are counted separately")

	mr.FastForward(16 * time.Minute)
	assert.NoError(t, l.Allow(ctx, id, ActionStart))
}

func TestLimiterResetClearsFailures(t *testing.T) {
	l, _ := newLimiter(t)
	ctx := context.Background()
	id := uuid.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Fail(ctx, id, ActionDeliver))
	}
	require.NoError(t, l.Reset(ctx, id, ActionDeliver))
	assert.NoError(t, l.Allow(ctx, id, ActionDeliver))
}

func TestLimiterWithoutRedisIsDisabled(t *testing.T) {
	l := NewAttemptLimiter(nil, 1, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Fail(ctx, id, ActionStart))
	}
	assert.NoError(t, l.Allow(ctx, id, ActionStart))

	var nilLimiter *AttemptLimiter
	assert.NoError(t, nilLimiter.Allow(ctx, id, ActionStart))
}

package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisPublisherPublishesOnUserChannel(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()
	userID := uuid.New()

	sub := client.Subscribe(ctx, Channel(userID))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client)
	e := NewEvent(userID, TypeClaimPaid, map[string]string{"claim_id": "c-1"})
	require.NoError(t, pub.Dispatch(ctx, e))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, `"claim_paid"`)
		assert.Contains(t, msg.Payload, e.ID.String())
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	recent, err := pub.Recent(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, e.ID, recent[0].ID)
}

func TestRedisPublisherTrimsBacklog(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()
	userID := uuid.New()
	pub := NewRedisPublisher(client)

	for i := 0; i < recentLimit+5; i++ {
		require.NoError(t, pub.Dispatch(ctx, NewEvent(userID, TypeTopUpReceived, nil)))
	}
	n, err := client.LLen(ctx, recentKey(userID)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, recentLimit, n)
}

func TestNilPublisherIsDisabled(t *testing.T) {
	var pub *RedisPublisher
	assert.NoError(t, pub.Dispatch(context.Background(), NewEvent(uuid.New(), TypeClaimCanceled, nil)))
	assert.NoError(t, NewRedisPublisher(nil).Dispatch(context.Background(), NewEvent(uuid.New(), TypeClaimCanceled, nil)))
}

type recorder struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (r *recorder) Dispatch(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func TestAsyncSwallowsFailures(t *testing.T) {
	rec := &recorder{err: errors.New("redis down")}
	async := NewAsync(rec, time.Second)

	err := async.Dispatch(context.Background(), NewEvent(uuid.New(), TypeWithdrawalFailed, nil))
	assert.NoError(t, err)
	async.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.events, 1)
}

func TestAsyncOutlivesCanceledContext(t *testing.T) {
	rec := &recorder{}
	async := NewAsync(rec, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, async.Dispatch(ctx, NewEvent(uuid.New(), TypeClaimDelivered, nil)))
	async.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.events, 1)
}

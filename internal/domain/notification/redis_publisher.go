package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// recentLimit bounds the per-user backlog kept for clients that reconnect.
const recentLimit = 50

// RedisPublisher publishes events on a per-user channel and keeps a short
// backlog list next to it.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func Channel(userID uuid.UUID) string {
	return "notifications:" + userID.String()
}

func recentKey(userID uuid.UUID) string {
	return Channel(userID) + ":recent"
}

func (p *RedisPublisher) Dispatch(ctx context.Context, e *Event) error {
	if p == nil || p.client == nil {
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, Channel(e.UserID), payload)
	pipe.LPush(ctx, recentKey(e.UserID), payload)
	pipe.LTrim(ctx, recentKey(e.UserID), 0, recentLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Recent returns the newest events for the user, newest first.
func (p *RedisPublisher) Recent(ctx context.Context, userID uuid.UUID, limit int64) ([]*Event, error) {
	if p == nil || p.client == nil {
		return []*Event{}, nil
	}
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}

	raw, err := p.client.LRange(ctx, recentKey(userID), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]*Event, 0, len(raw))
	for _, item := range raw {
		var e Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		events = append(events, &e)
	}
	return events, nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"apartado/backend/internal/domain"
)

// RedisPublisher fans each event out to a per-type channel and to an
// aggregate "<prefix>:all" channel.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "pos:events"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// NewRedisClient is shared by the publisher and the branch locker.
func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) PublishLedgerCancelled(ctx context.Context, event domain.LedgerCancelledEvent) error {
	if event.EventType == "" {
		event.EventType = domain.EventLedgerCancelled
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.Channel(event.EventType), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel("all"), payload).Err(); err != nil {
		return fmt.Errorf("publish to all channel: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Channel(eventType string) string {
	return p.prefix + ":" + eventType
}

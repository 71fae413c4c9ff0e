// Package notify fans out order lifecycle events after commit. Consumers
// (dashboards, the mail relay) subscribe out of process; a lost event never
// rolls back the order that produced it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const (
	EventOrderCreated   = "order.created"
	EventOrderCompleted = "order.completed"
	EventPaymentFailed  = "payment.failed"
)

type OrderEvent struct {
	EventType string    `json:"event_type"`
	OrderID   int64     `json:"order_id"`
	Kind      string    `json:"kind"`
	Channel   string    `json:"channel,omitempty"`
	Status    string    `json:"status"`
	Total     string    `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

type RedisPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewRedisPublisher(rdb *redis.Client, log zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, log: log}
}

func (p *RedisPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := fmt.Sprintf("orders:events:%s", event.EventType)
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := p.rdb.Publish(ctx, "orders:events:all", payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to all channel: %w", err)
	}

	return nil
}

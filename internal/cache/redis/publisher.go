package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher sends live-update payloads over Redis Pub/Sub.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(c *Client) *Publisher {
	return &Publisher{rdb: c.Underlying()}
}

// Publish sends a raw payload to a channel.
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Package events adapts Redis pub/sub to the orchestrator's Publisher
// contract. The gateway subscribes to these channels and forwards them to
// clients over SSE.
package events

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events on a Redis connection.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher wraps rdb.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish sends payload on the given channel.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.rdb.Publish(ctx, channel, payload).Err()
}

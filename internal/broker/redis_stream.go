package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisStreamProducer struct {
	client redis.Cmdable
	maxLen int64
}

// NewRedisStreamProducer appends each message to a Redis stream named after
// its topic. Streams are trimmed approximately to maxLen entries; zero
// disables trimming.
func NewRedisStreamProducer(client redis.Cmdable, maxLen int64) (Producer, error) {
	if client == nil {
		return nil, errors.New("redis stream: client not configured")
	}
	return &redisStreamProducer{client: client, maxLen: maxLen}, nil
}

func (p *redisStreamProducer) Send(ctx context.Context, msg Message) error {
	values := map[string]any{
		"key":   msg.Key,
		"value": msg.Value,
	}
	for key, val := range msg.Headers {
		values[key] = val
	}
	args := &redis.XAddArgs{
		Stream: msg.Topic,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", msg.Topic, err)
	}
	return nil
}

// Close is a no-op; the client is owned by the persistence layer.
func (p *redisStreamProducer) Close() error { return nil }

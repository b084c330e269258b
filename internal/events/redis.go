package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// StreamKey is the Redis stream for ledger events.
	StreamKey = "stream:ledger_events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000
)

// RedisStreamSink appends events to a Redis stream.
type RedisStreamSink struct {
	client *redis.Client
	stream string
}

// NewRedisStreamSink creates a sink writing to StreamKey.
func NewRedisStreamSink(client *redis.Client) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: StreamKey}
}

// Send adds the event to the stream.
func (s *RedisStreamSink) Send(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"type":    event.Type,
			"payload": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the cache.
func (s *RedisStreamSink) Close() error { return nil }

package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/brixel-ai/brixel-client/pkg/api"
)

// Redis delivers event batches to a Redis pub/sub channel as JSON messages.
// It implements Sink and is normally wrapped in a Queue so publishing stays
// off the interpreter's path
type Redis struct {
	client  *redis.Client
	channel string
}

var (
	ErrMarshalEvent = errors.New("failed to marshal event")
	ErrRedisPublish = errors.New("failed to publish event")
)

// NewRedis creates a Redis sink publishing to the given channel
func NewRedis(client *redis.Client, channel string) *Redis {
	return &Redis{
		client:  client,
		channel: channel,
	}
}

// Send publishes each event of the batch, in order
func (r *Redis) Send(batch []*api.Event) error {
	ctx := context.Background()
	for _, ev := range batch {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMarshalEvent, err)
		}
		if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrRedisPublish, err)
		}
	}
	return nil
}

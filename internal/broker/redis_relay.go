package broker

import (
	"context"
	"encoding/json"
	"time"

	"auction-core/internal/models"
	"auction-core/utils"

	"github.com/redis/go-redis/v9"
)

// RedisRelay republishes hub events on Redis pub/sub so edge nodes can
// serve watchers without connecting to this process. Channels are the hub
// topic behind a prefix, for example "auction-core:auction:<id>".
type RedisRelay struct {
	client *redis.Client
	prefix string
}

// NewRedisRelay creates a relay publishing under prefix
func NewRedisRelay(client *redis.Client, prefix string) *RedisRelay {
	return &RedisRelay{client: client, prefix: prefix}
}

// Channel returns the Redis channel for a hub topic
func (r *RedisRelay) Channel(topic string) string {
	return r.prefix + topic
}

// Forward is a hub handler publishing evt on its topic's channel
func (r *RedisRelay) Forward(evt models.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		utils.Error("failed to marshal event for redis", map[string]any{"event_type": evt.Type, "error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := r.client.Publish(ctx, r.Channel(evt.Topic), string(payload)).Err(); err != nil {
		utils.Warn("failed to relay event to redis", map[string]any{
			"topic": evt.Topic,
			"error": err.Error(),
		})
	}
}

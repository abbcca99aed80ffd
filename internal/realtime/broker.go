package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Mussapinga011/PartQuip-sub000/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the Redis pub/sub channel shared by all instances.
const DefaultChannel = "partquip:changes"

// Publisher announces an applied write.
type Publisher interface {
	Publish(ctx context.Context, ev dto.ChangeEvent) error
}

// LocalPublisher hands events straight to one Hub. Used when the server runs
// as a single instance without Redis.
type LocalPublisher struct{ Hub *Hub }

func (p LocalPublisher) Publish(_ context.Context, ev dto.ChangeEvent) error {
	p.Hub.Broadcast(ev)
	return nil
}

// RedisBroker publishes events to a Redis channel and relays the channel
// back into the local Hub.
type RedisBroker struct {
	rdb     *redis.Client
	channel string
}

func NewRedisBroker(rdb *redis.Client, channel string) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroker{rdb: rdb, channel: channel}
}

func (b *RedisBroker) Publish(ctx context.Context, ev dto.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("realtime: marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("realtime: publish: %w", err)
	}
	return nil
}

// Relay subscribes to the channel and broadcasts every message on hub until
// ctx is cancelled. Malformed messages are logged and skipped.
func (b *RedisBroker) Relay(ctx context.Context, hub *Hub) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: subscribe %s: %w", b.channel, err)
	}
	log.Info().Str("channel", b.channel).Msg("realtime: relay started")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("realtime: relay stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev dto.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Msg("realtime: dropping malformed event")
				continue
			}
			hub.Broadcast(ev)
		}
	}
}

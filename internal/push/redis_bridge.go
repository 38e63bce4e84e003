package push

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tracklite-io/tracklite/internal/domain"
)

const channelName = "tracklite:notifications"

type envelope struct {
	Origin       string              `json:"origin"`
	Notification domain.Notification `json:"notification"`
}

// Bridge fans notification deliveries out across service instances via
// Redis pub/sub. Each instance publishes with its own origin id and
// ignores its own messages when consuming, so local delivery stays
// single-path through the registry.
type Bridge struct {
	client   *redis.Client
	registry *Registry
	logger   *zap.Logger
	origin   string
}

// NewBridge wires a bridge over the given client and registry.
func NewBridge(client *redis.Client, registry *Registry, logger *zap.Logger) *Bridge {
	return &Bridge{
		client:   client,
		registry: registry,
		logger:   logger,
		origin:   uuid.NewString(),
	}
}

// Publish sends the notification to peer instances. Best-effort: a Redis
// outage only delays remote real-time delivery, the durable row already
// exists.
func (b *Bridge) Publish(ctx context.Context, n domain.Notification) {
	if b == nil || b.client == nil {
		return
	}
	payload, err := json.Marshal(envelope{Origin: b.origin, Notification: n})
	if err != nil {
		b.logger.Warn("marshal push envelope", zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, channelName, payload).Err(); err != nil {
		b.logger.Warn("publish notification to redis", zap.Error(err))
	}
}

// Run consumes peer deliveries until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	if b == nil || b.client == nil {
		return
	}
	sub := b.client.Subscribe(ctx, channelName)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("decode push envelope", zap.Error(err))
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			b.registry.Deliver(env.Notification)
		}
	}
}

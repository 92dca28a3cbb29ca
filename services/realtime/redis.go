package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker publishes room events on Redis channels named after the room
// and relays every course:* channel into the local hub.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	log    *zap.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

var _ Broker = (*RedisBroker)(nil)

// NewRedisBroker creates a broker on an existing client.
func NewRedisBroker(client *redis.Client, hub *Hub, log *zap.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		hub:    hub,
		log:    log.With(zap.String("broker", "redis")),
		ready:  make(chan struct{}),
	}
}

// Publish sends the event to its room channel.
func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, event.Room, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", event.Room, err)
	}
	return nil
}

// Ready is closed once the pattern subscription is confirmed.
func (b *RedisBroker) Ready() <-chan struct{} {
	return b.ready
}

// Run relays subscribed events until ctx is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, roomPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	b.readyOnce.Do(func() { close(b.ready) })
	b.log.Info("relaying course rooms")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := relay(b.hub, []byte(msg.Payload), time.Now()); err != nil {
				b.log.Warn("dropping malformed room event", zap.String("channel", msg.Channel), zap.Error(err))
			}
		}
	}
}

// Close is a no-op; the client is owned by the caller.
func (b *RedisBroker) Close() error {
	return nil
}

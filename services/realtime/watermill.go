package realtime

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// KafkaTopic carries the events of every course room.
const KafkaTopic = "course-rooms"

// WatermillBroker publishes room events to a Watermill topic and relays the
// topic into the local hub.
type WatermillBroker struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	hub        *Hub
	log        *zap.Logger
}

var _ Broker = (*WatermillBroker)(nil)

// NewWatermillBroker wires an arbitrary Watermill publisher/subscriber pair.
func NewWatermillBroker(pub message.Publisher, sub message.Subscriber, topic string, hub *Hub, log *zap.Logger) *WatermillBroker {
	return &WatermillBroker{
		publisher:  pub,
		subscriber: sub,
		topic:      topic,
		hub:        hub,
		log:        log,
	}
}

// NewKafkaBroker connects to Kafka. Each instance consumes with its own
// consumer group so every instance sees every event.
func NewKafkaBroker(brokers []string, consumerGroup string, hub *Hub, log *zap.Logger) (*WatermillBroker, error) {
	log = log.With(zap.String("broker", "kafka"))
	wmLogger := NewZapLoggerAdapter(log)

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}

	host, _ := os.Hostname()
	if host == "" {
		host = watermill.NewShortUUID()
	}

	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:       brokers,
		Unmarshaler:   kafka.DefaultMarshaler{},
		ConsumerGroup: consumerGroup + "-" + host,
	}, wmLogger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("kafka subscriber: %w", err)
	}

	return NewWatermillBroker(pub, sub, KafkaTopic, hub, log), nil
}

// Publish sends the event keyed by its room. Watermill publishers take no
// context, so Publish stops waiting when ctx is done and leaves the send to
// finish or fail on its own.
func (b *WatermillBroker) Publish(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("room", event.Room)
	msg.Metadata.Set("type", event.Type)
	msg.SetContext(ctx)

	done := make(chan error, 1)
	go func() {
		done <- b.publisher.Publish(b.topic, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("publish to %s: %w", b.topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", b.topic, ctx.Err())
	}
}

// Run relays the topic until ctx is done.
func (b *WatermillBroker) Run(ctx context.Context) error {
	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topic, err)
	}
	b.log.Info("relaying course rooms", zap.String("topic", b.topic))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if _, err := relay(b.hub, msg.Payload, time.Now()); err != nil {
				b.log.Warn("dropping malformed room event", zap.String("message_uuid", msg.UUID), zap.Error(err))
			}
			// at-most-once: malformed messages are acked too
			msg.Ack()
		}
	}
}

// Close shuts down both sides.
func (b *WatermillBroker) Close() error {
	subErr := b.subscriber.Close()
	if err := b.publisher.Close(); err != nil {
		return err
	}
	return subErr
}

// ZapLoggerAdapter implements watermill.LoggerAdapter on zap.
type ZapLoggerAdapter struct {
	log *zap.Logger
}

// NewZapLoggerAdapter wraps log for Watermill components.
func NewZapLoggerAdapter(log *zap.Logger) watermill.LoggerAdapter {
	return &ZapLoggerAdapter{log: log}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (a *ZapLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (a *ZapLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(msg, zapFields(fields)...)
}

func (a *ZapLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, zapFields(fields)...)
}

// Trace maps to debug; zap has no trace level.
func (a *ZapLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, zapFields(fields)...)
}

func (a *ZapLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &ZapLoggerAdapter{log: a.log.With(zapFields(fields)...)}
}

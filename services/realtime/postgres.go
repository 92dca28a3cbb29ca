package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// pgChannel is the LISTEN/NOTIFY channel shared by all course rooms.
const pgChannel = "course_rooms"

// PostgresBroker uses NOTIFY on the application database, so a deployment
// without Redis or Kafka still fans out across instances.
type PostgresBroker struct {
	db  *gorm.DB
	dsn string
	hub *Hub
	log *zap.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

var _ Broker = (*PostgresBroker)(nil)

// NewPostgresBroker publishes through db and listens on a dedicated
// connection opened from dsn.
func NewPostgresBroker(db *gorm.DB, dsn string, hub *Hub, log *zap.Logger) *PostgresBroker {
	return &PostgresBroker{
		db:    db,
		dsn:   dsn,
		hub:   hub,
		log:   log.With(zap.String("broker", "postgres")),
		ready: make(chan struct{}),
	}
}

// Publish sends the event with pg_notify.
func (b *PostgresBroker) Publish(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	if err := b.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", pgChannel, string(payload)).Error; err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// Ready is closed once LISTEN succeeded.
func (b *PostgresBroker) Ready() <-chan struct{} {
	return b.ready
}

// Run listens for notifications until ctx is done.
func (b *PostgresBroker) Run(ctx context.Context) error {
	listener := pq.NewListener(b.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			b.log.Warn("listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	defer listener.Close()

	if err := listener.Listen(pgChannel); err != nil {
		return fmt.Errorf("listen %s: %w", pgChannel, err)
	}
	b.readyOnce.Do(func() { close(b.ready) })
	b.log.Info("relaying course rooms", zap.String("channel", pgChannel))

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; anything sent meanwhile is lost
			if n == nil {
				continue
			}
			if _, err := relay(b.hub, []byte(n.Extra), time.Now()); err != nil {
				b.log.Warn("dropping malformed room event", zap.Error(err))
			}
		case <-ping.C:
			go func() {
				if err := listener.Ping(); err != nil {
					b.log.Warn("listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (b *PostgresBroker) Close() error {
	return nil
}

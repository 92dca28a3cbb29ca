package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const defaultBuffer = 16

// Subscription receives the events of one room. Events arrive on C; Ping
// fires when the hub asks streams to send a keep-alive.
type Subscription struct {
	Room string
	C    <-chan Event
	Ping <-chan struct{}

	events chan Event
	ping   chan struct{}
	hub    *Hub
	once   sync.Once
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub is the in-process room registry. Broadcast never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Subscription]struct{}
	buffer  int
	closed  bool
	dropped atomic.Uint64
	log     *zap.Logger
}

var _ Broker = (*Hub)(nil)

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		rooms:  make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe joins a room.
func (h *Hub) Subscribe(room string) *Subscription {
	events := make(chan Event, h.buffer)
	ping := make(chan struct{}, 1)
	sub := &Subscription{Room: room, C: events, Ping: ping, events: events, ping: ping, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.once.Do(func() { close(events) })
		return sub
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Subscription]struct{})
	}
	h.rooms[room][sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[sub.Room]; ok {
		delete(members, sub)
		if len(members) == 0 {
			delete(h.rooms, sub.Room)
		}
	}
	sub.once.Do(func() { close(sub.events) })
}

// Broadcast hands event to every subscriber of its room and returns how
// many received it.
func (h *Hub) Broadcast(event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.rooms[event.Room] {
		select {
		case sub.events <- event:
			delivered++
		default:
			h.dropped.Add(1)
			h.log.Debug("dropped room event for slow subscriber",
				zap.String("room", event.Room), zap.String("event_id", event.ID))
		}
	}
	return delivered
}

// Publish broadcasts locally. It is the whole transport when no external
// broker is configured.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.Broadcast(event)
	return nil
}

// Run blocks until ctx is done; the hub has nothing to relay.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// KeepAlive signals every subscriber to write a keep-alive and returns the
// number of live subscribers.
func (h *Hub) KeepAlive() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, members := range h.rooms {
		for sub := range members {
			n++
			select {
			case sub.ping <- struct{}{}:
			default:
			}
		}
	}
	return n
}

// Subscribers returns the number of subscribers in a room.
func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close ends every subscription. Later subscriptions are closed on arrival.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for room, members := range h.rooms {
		for sub := range members {
			sub.once.Do(func() { close(sub.events) })
		}
		delete(h.rooms, room)
	}
	return nil
}

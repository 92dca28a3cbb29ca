package stream

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/services/realtime"
	"go.uber.org/zap"
)

// brokenConn fails every write, like a client that went away.
type brokenConn struct{}

func (brokenConn) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

// lockedBuffer is a bytes.Buffer safe to read while pump writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPumpReleasesIdleDeadStream(t *testing.T) {
	hub := realtime.NewHub(1, zap.NewNop())
	h := NewStreamHandler(nil, hub, zap.NewNop()).WithKeepAlive(10 * time.Millisecond)
	sub := hub.Subscribe(realtime.RoomName(1))

	done := make(chan struct{})
	go func() {
		h.pump(bufio.NewWriter(brokenConn{}), sub)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump kept a dead stream open without room traffic")
	}
	if n := hub.KeepAlive(); n != 0 {
		t.Fatalf("expected no live subscribers, got %d", n)
	}
}

func TestPumpWritesEventsAndKeepAlives(t *testing.T) {
	hub := realtime.NewHub(4, zap.NewNop())
	h := NewStreamHandler(nil, hub, zap.NewNop()).WithKeepAlive(10 * time.Millisecond)
	sub := hub.Subscribe(realtime.RoomName(2))

	out := &lockedBuffer{}
	done := make(chan struct{})
	go func() {
		h.pump(bufio.NewWriter(out), sub)
		close(done)
	}()

	hub.Broadcast(realtime.NewConfusionUpdate(2, 5))

	deadline := time.After(2 * time.Second)
	for {
		got := out.String()
		if strings.Contains(got, "event: "+realtime.EventConfusionUpdate) && strings.Contains(got, ": ping") {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("missing event or keep-alive in %q", got)
		case <-time.After(5 * time.Millisecond):
		}
	}

	sub.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not return after the subscription closed")
	}
}

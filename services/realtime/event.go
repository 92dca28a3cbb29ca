// Package realtime fans course room events out to live subscribers.
//
// Writers depend on Publisher only. Brokers move events between server
// instances and hand them to the local Hub, which owns the SSE subscribers.
package realtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventConfusionUpdate tells subscribers that a course's confusion state
// changed and should be re-fetched.
const EventConfusionUpdate = "confusion.update"

const roomPrefix = "course:"

// Event is the envelope broadcast to a course room. It carries identifiers
// only; subscribers fetch the aggregate themselves.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Room        string    `json:"room"`
	CourseID    uint      `json:"course_id"`
	PainPointID uint      `json:"pain_point_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// RoomName returns the broadcast group of a course.
func RoomName(courseID uint) string {
	return roomPrefix + strconv.FormatUint(uint64(courseID), 10)
}

// ParseRoom extracts the course id from a room name.
func ParseRoom(room string) (uint, error) {
	if !strings.HasPrefix(room, roomPrefix) {
		return 0, fmt.Errorf("not a course room: %q", room)
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(room, roomPrefix), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("not a course room: %q", room)
	}
	return uint(id), nil
}

// NewConfusionUpdate builds the event published after a pain point is stored.
func NewConfusionUpdate(courseID, painPointID uint) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        EventConfusionUpdate,
		Room:        RoomName(courseID),
		CourseID:    courseID,
		PainPointID: painPointID,
		Timestamp:   time.Now().UTC(),
	}
}

// Publisher delivers an event to its room. Delivery is at most once.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Broker is a Publisher that also relays remote events into the local hub
// until ctx is done.
type Broker interface {
	Publisher
	Run(ctx context.Context) error
	Close() error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

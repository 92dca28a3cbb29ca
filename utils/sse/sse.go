package sse

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Event represents an SSE event to be sent to clients
type Event struct {
	// Event is the SSE event type. If empty, no "event:" line is written.
	Event string

	// Data is the payload, JSON-encoded unless it is a string or []byte
	Data interface{}

	// ID is an optional event ID for reconnection support
	ID string

	// Retry is an optional reconnection time in milliseconds
	Retry int
}

// SetHeaders prepares a response for streaming.
func SetHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}

// Send writes an SSE event to the given writer and flushes immediately
func Send(w *bufio.Writer, event Event) error {
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}

	if event.Retry > 0 {
		if _, err := fmt.Fprintf(w, "retry: %d\n", event.Retry); err != nil {
			return fmt.Errorf("failed to write retry: %w", err)
		}
	}

	if event.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Event); err != nil {
			return fmt.Errorf("failed to write event type: %w", err)
		}
	}

	var dataStr string
	switch v := event.Data.(type) {
	case string:
		dataStr = v
	case []byte:
		dataStr = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
		dataStr = string(data)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", dataStr); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	return w.Flush()
}

// SendKeepAlive sends a comment (: ping) to keep the connection alive
func SendKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
		return fmt.Errorf("failed to write keepalive: %w", err)
	}
	return w.Flush()
}

package stream

import (
	"bufio"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/handlers"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services/realtime"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/middleware"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/response"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/sse"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const reconnectMillis = 3000

// DefaultKeepAlive is how often an idle stream writes a keep-alive on its
// own, whether or not the cron keep-alive job runs.
const DefaultKeepAlive = 30 * time.Second

// StreamHandler serves course rooms as server-sent events
type StreamHandler struct {
	courses   *services.CourseService
	hub       *realtime.Hub
	keepAlive time.Duration
	log       *zap.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(courses *services.CourseService, hub *realtime.Hub, log *zap.Logger) *StreamHandler {
	return &StreamHandler{courses: courses, hub: hub, keepAlive: DefaultKeepAlive, log: log}
}

// WithKeepAlive replaces the idle keep-alive interval.
func (h *StreamHandler) WithKeepAlive(d time.Duration) *StreamHandler {
	h.keepAlive = d
	return h
}

// StreamCourse handles GET /api/v1/courses/:id/stream
func (h *StreamHandler) StreamCourse(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	if _, err := h.courses.Get(c.UserContext(), user, id); err != nil {
		return handlers.ServiceError(c, h.log, err)
	}

	room := realtime.RoomName(id)
	sub := h.hub.Subscribe(room)
	userID := user.ID

	sse.SetHeaders(c)

	// The fiber context is not valid inside the stream writer.
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		h.log.Debug("stream opened", zap.String("room", room), zap.Uint("user_id", userID))
		if err := sse.Send(w, sse.Event{
			Event: "ready",
			Data:  fiber.Map{"room": room},
			Retry: reconnectMillis,
		}); err != nil {
			sub.Close()
			return
		}
		h.pump(w, sub)
	})

	return nil
}

// pump writes room events until the subscription ends or a write fails,
// then closes the subscription. A failed write is how a gone client shows up.
func (h *StreamHandler) pump(w *bufio.Writer, sub *realtime.Subscription) {
	defer sub.Close()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		var err error
		select {
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			err = sse.Send(w, sse.Event{Event: event.Type, ID: event.ID, Data: event})
		case <-sub.Ping:
			err = sse.SendKeepAlive(w)
		case <-ticker.C:
			err = sse.SendKeepAlive(w)
		}
		if err != nil {
			h.log.Debug("stream closed", zap.String("room", sub.Room), zap.Error(err))
			return
		}
	}
}

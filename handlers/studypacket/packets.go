package studypacket

import (
	"encoding/json"
	"strings"

	"github.com/MEmshousen/CodeRED2025-404NotFound/handlers"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/jsonextract"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/middleware"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/response"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/validation"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StudyPacketHandler handles study packet requests
type StudyPacketHandler struct {
	service   *services.StudyPacketService
	validator *validation.Validator
	log       *zap.Logger
}

// NewStudyPacketHandler creates a new study packet handler
func NewStudyPacketHandler(service *services.StudyPacketService, log *zap.Logger) *StudyPacketHandler {
	return &StudyPacketHandler{
		service:   service,
		validator: validation.NewValidator(),
		log:       log,
	}
}

// CreateStudyPacketRequest only names the course. Any status or payload in
// the body is ignored.
type CreateStudyPacketRequest struct {
	Course uint `json:"course" validate:"required,min=1"`
}

// MarkReadyRequest carries generated content, either as a JSON object or as
// raw model output with the object embedded in it.
type MarkReadyRequest struct {
	Payload   json.RawMessage `json:"payload"`
	RawOutput string          `json:"raw_output"`
}

// CreateStudyPacket handles POST /api/v1/study-packets
func (h *StudyPacketHandler) CreateStudyPacket(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)

	var req CreateStudyPacketRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	packet, err := h.service.Create(c.UserContext(), user, req.Course)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Created(c, packet)
}

// ListStudyPackets handles GET /api/v1/study-packets?course=<id>
func (h *StudyPacketHandler) ListStudyPackets(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)

	var courseID uint
	if raw := c.Query("course"); raw != "" {
		id, ok := handlers.ParseID(raw)
		if !ok {
			return response.BadRequest(c, "Invalid course ID")
		}
		courseID = id
	}

	packets, err := h.service.List(c.UserContext(), user, courseID)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.List(c, packets)
}

// GetStudyPacket handles GET /api/v1/study-packets/:id
func (h *StudyPacketHandler) GetStudyPacket(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid study packet ID")
	}

	packet, err := h.service.Get(c.UserContext(), user, id)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Success(c, packet)
}

// ApproveStudyPacket handles POST /api/v1/study-packets/:id/approve
func (h *StudyPacketHandler) ApproveStudyPacket(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid study packet ID")
	}

	packet, err := h.service.Approve(c.UserContext(), user, id)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.SuccessWithMessage(c, "Study packet approved", packet)
}

// MarkReady handles POST /internal/study-packets/:id/ready
func (h *StudyPacketHandler) MarkReady(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid study packet ID")
	}

	var req MarkReadyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	payload := req.Payload
	if len(payload) == 0 || string(payload) == "null" {
		if strings.TrimSpace(req.RawOutput) == "" {
			return response.BadRequest(c, "payload or raw_output is required")
		}
		extracted, err := jsonextract.Object(req.RawOutput)
		if err != nil {
			return response.BadRequest(c, "raw_output does not contain a JSON object")
		}
		payload = extracted
	}

	packet, err := h.service.MarkReady(c.UserContext(), id, payload)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Success(c, packet)
}

// MarkSent handles POST /internal/study-packets/:id/sent
func (h *StudyPacketHandler) MarkSent(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid study packet ID")
	}

	packet, err := h.service.MarkSent(c.UserContext(), id)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Success(c, packet)
}

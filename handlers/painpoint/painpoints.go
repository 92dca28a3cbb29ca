package painpoint

import (
	"github.com/MEmshousen/CodeRED2025-404NotFound/handlers"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/middleware"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/response"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/validation"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PainPointHandler handles pain point requests
type PainPointHandler struct {
	service   *services.PainPointService
	validator *validation.Validator
	log       *zap.Logger
}

// NewPainPointHandler creates a new pain point handler
func NewPainPointHandler(service *services.PainPointService, log *zap.Logger) *PainPointHandler {
	return &PainPointHandler{
		service:   service,
		validator: validation.NewValidator(),
		log:       log,
	}
}

// CreatePainPointRequest is a pain point submission. The author is always
// the caller.
type CreatePainPointRequest struct {
	Course      uint   `json:"course" validate:"required,min=1"`
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	Topic       string `json:"topic" validate:"omitempty,max=120"`
}

// CreatePainPoint handles POST /api/v1/pain-points
func (h *PainPointHandler) CreatePainPoint(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)

	var req CreatePainPointRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	pp, err := h.service.Create(c.UserContext(), user, services.PainPointInput{
		CourseID:    req.Course,
		Title:       validation.SanitizeString(req.Title),
		Description: validation.SanitizeString(req.Description),
		Topic:       validation.SanitizeString(req.Topic),
	})
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Created(c, Present(user, pp))
}

// ListPainPoints handles GET /api/v1/pain-points?course=<id>
func (h *PainPointHandler) ListPainPoints(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)

	var courseID uint
	if raw := c.Query("course"); raw != "" {
		id, ok := handlers.ParseID(raw)
		if !ok {
			return response.BadRequest(c, "Invalid course ID")
		}
		courseID = id
	}

	points, err := h.service.List(c.UserContext(), user, courseID)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.List(c, PresentAll(user, points))
}

// GetPainPoint handles GET /api/v1/pain-points/:id
func (h *PainPointHandler) GetPainPoint(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid pain point ID")
	}

	pp, err := h.service.Get(c.UserContext(), user, id)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Success(c, Present(user, pp))
}

// DeletePainPoint handles DELETE /api/v1/pain-points/:id
func (h *PainPointHandler) DeletePainPoint(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid pain point ID")
	}

	if err := h.service.Delete(c.UserContext(), user, id); err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.NoContent(c)
}

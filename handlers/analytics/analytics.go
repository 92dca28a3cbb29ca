package analytics

import (
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/handlers"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/middleware"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/response"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/validation"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AnalyticsHandler serves the confusion views
type AnalyticsHandler struct {
	service   *services.AnalyticsService
	validator *validation.Validator
	log       *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(service *services.AnalyticsService, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:   service,
		validator: validation.NewValidator(),
		log:       log,
	}
}

// CreateSnapshotRequest asks for a persisted rollup. Omitted bounds default
// to the last 15 minutes.
type CreateSnapshotRequest struct {
	Course      uint       `json:"course" validate:"required,min=1"`
	WindowStart *time.Time `json:"window_start"`
	WindowEnd   *time.Time `json:"window_end"`
	Summary     string     `json:"summary" validate:"omitempty,max=10000"`
}

// courseParam reads the required ?course= parameter. A non-empty problem
// means the request must be rejected.
func courseParam(c *fiber.Ctx) (id uint, problem string) {
	raw := c.Query("course")
	if raw == "" {
		return 0, "Missing course ID"
	}
	id, ok := handlers.ParseID(raw)
	if !ok {
		return 0, "Invalid course ID"
	}
	return id, ""
}

// GetCourseConfusion handles GET /api/v1/analytics/course?course=<id>
func (h *AnalyticsHandler) GetCourseConfusion(c *fiber.Ctx) error {
	courseID, problem := courseParam(c)
	if problem != "" {
		return response.BadRequest(c, problem)
	}
	user, _ := middleware.GetUser(c)

	result, err := h.service.CourseConfusion(c.UserContext(), user, courseID)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Success(c, result)
}

// CreateSnapshot handles POST /api/v1/analytics/snapshots
func (h *AnalyticsHandler) CreateSnapshot(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)

	var req CreateSnapshotRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	snapshot, err := h.service.CreateSnapshot(c.UserContext(), user, services.SnapshotInput{
		CourseID:    req.Course,
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
		Summary:     validation.SanitizeString(req.Summary),
	})
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Created(c, snapshot)
}

// ListSnapshots handles GET /api/v1/analytics/snapshots?course=<id>
func (h *AnalyticsHandler) ListSnapshots(c *fiber.Ctx) error {
	courseID, problem := courseParam(c)
	if problem != "" {
		return response.BadRequest(c, problem)
	}
	user, _ := middleware.GetUser(c)

	snapshots, err := h.service.ListSnapshots(c.UserContext(), user, courseID)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.List(c, snapshots)
}

package course

import (
	"io"
	"strings"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/handlers"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/middleware"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/response"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/validation"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CourseHandler handles course, enrollment and material requests
type CourseHandler struct {
	courses   *services.CourseService
	materials *services.MaterialService
	validator *validation.Validator
	log       *zap.Logger
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(courses *services.CourseService, materials *services.MaterialService, log *zap.Logger) *CourseHandler {
	return &CourseHandler{
		courses:   courses,
		materials: materials,
		validator: validation.NewValidator(),
		log:       log,
	}
}

// CourseRequest represents the request body for creating or updating a course
type CourseRequest struct {
	Code string `json:"code" validate:"required,notblank,max=32"`
	Name string `json:"name" validate:"required,notblank,max=200"`
	CRN  string `json:"crn" validate:"omitempty,max=32"`
}

func (r CourseRequest) input() services.CourseInput {
	return services.CourseInput{
		Code: strings.TrimSpace(r.Code),
		Name: strings.TrimSpace(r.Name),
		CRN:  strings.TrimSpace(r.CRN),
	}
}

// JoinResponse reports the outcome of a join.
type JoinResponse struct {
	Joined  bool `json:"joined"`
	Created bool `json:"created"`
}

// DownloadResponse carries a presigned material link.
type DownloadResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)

	courses, err := h.courses.List(c.UserContext(), user)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.List(c, courses)
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	course, err := h.courses.Detail(c.UserContext(), user, id)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Success(c, course)
}

// CreateCourse handles POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)

	var req CourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	course, err := h.courses.Create(c.UserContext(), user, req.input())
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Created(c, course)
}

// UpdateCourse handles PUT /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	var req CourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	course, err := h.courses.Update(c.UserContext(), user, id, req.input())
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.SuccessWithMessage(c, "Course updated successfully", course)
}

// DeleteCourse handles DELETE /api/v1/courses/:id
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	if err := h.courses.Delete(c.UserContext(), user, id); err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.NoContent(c)
}

// JoinCourse handles POST /api/v1/courses/:id/join. Joining twice is not an
// error.
func (h *CourseHandler) JoinCourse(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	created, err := h.courses.Join(c.UserContext(), user, id)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Success(c, JoinResponse{Joined: true, Created: created})
}

// UploadMaterial handles POST /api/v1/courses/:id/materials (multipart)
func (h *CourseHandler) UploadMaterial(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "No file uploaded")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return response.BadRequest(c, "Failed to read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return response.BadRequest(c, "Failed to read uploaded file")
	}

	material, err := h.materials.Upload(c.UserContext(), user, id, services.MaterialUpload{
		Title:    validation.SanitizeString(c.FormValue("title")),
		FileName: fileHeader.Filename,
		Data:     data,
	})
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Created(c, material)
}

// ListMaterials handles GET /api/v1/courses/:id/materials
func (h *CourseHandler) ListMaterials(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	id, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	materials, err := h.materials.List(c.UserContext(), user, id)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.List(c, materials)
}

// DownloadMaterial handles GET /api/v1/courses/:id/materials/:material_id/download
func (h *CourseHandler) DownloadMaterial(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	courseID, ok := handlers.ParseID(c.Params("id"))
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}
	materialID, ok := handlers.ParseID(c.Params("material_id"))
	if !ok {
		return response.BadRequest(c, "Invalid material ID")
	}

	url, expiresAt, err := h.materials.DownloadURL(c.UserContext(), user, courseID, materialID)
	if err != nil {
		return handlers.ServiceError(c, h.log, err)
	}
	return response.Success(c, DownloadResponse{URL: url, ExpiresAt: expiresAt.UTC()})
}

package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/MEmshousen/CodeRED2025-404NotFound/services"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/response"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/validation"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ServiceError maps a service error onto the response envelope. Unknown
// errors are logged and reported as 500 without detail.
func ServiceError(c *fiber.Ctx, log *zap.Logger, err error) error {
	var verrs *validation.Errors
	switch {
	case errors.As(err, &verrs):
		return response.ValidationError(c, verrs)
	case errors.Is(err, services.ErrInvalidInput):
		return response.BadRequest(c, detail(err, services.ErrInvalidInput))
	case errors.Is(err, services.ErrNotFound):
		return response.NotFound(c, "")
	case errors.Is(err, services.ErrForbidden):
		return response.Forbidden(c, detail(err, services.ErrForbidden))
	case errors.Is(err, services.ErrInvalidTransition):
		return response.Conflict(c, detail(err, services.ErrInvalidTransition))
	case errors.Is(err, services.ErrStorageUnavailable):
		return response.ServiceUnavailable(c, "File storage is not configured")
	}

	log.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Any("request_id", c.Locals("requestid")),
		zap.Error(err))
	return response.InternalServerError(c, "")
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// ParseID reads a positive numeric route or query value.
func ParseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

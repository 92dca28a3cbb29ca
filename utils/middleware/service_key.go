package middleware

import (
	"crypto/subtle"

	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/response"
	"github.com/gofiber/fiber/v2"
)

// ServiceKeyHeader carries the shared secret of trusted background jobs.
const ServiceKeyHeader = "X-Service-Key"

// RequireServiceKey authenticates machine callers by a shared key.
func RequireServiceKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get(ServiceKeyHeader)
		if provided == "" {
			return response.Unauthorized(c, "Service key required")
		}
		if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			return response.Unauthorized(c, "Invalid service key")
		}
		c.Locals("service_caller", true)
		return c.Next()
	}
}

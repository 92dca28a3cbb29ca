package handlers

import (
	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/response"
	"github.com/gofiber/fiber/v2"
)

// HandleCheckHealth reports liveness and database reachability.
func HandleCheckHealth(c *fiber.Ctx, store database.Storage) error {
	if err := store.HealthCheck(); err != nil {
		return response.ServiceUnavailable(c, "Database unavailable")
	}
	return response.Success(c, fiber.Map{"status": "ok"})
}

package auth

import (
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/middleware"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/response"
	"github.com/gofiber/fiber/v2"
)

// ProfileResponse is the caller's provisioned identity.
type ProfileResponse struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        model.Role `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"token_expires_at,omitempty"`
}

// GetProfile handles GET /api/v1/me
func GetProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	profile := ProfileResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		CreatedAt:   user.CreatedAt,
	}
	if claims, ok := middleware.GetClaims(c); ok && claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		profile.ExpiresAt = &exp
	}
	return response.Success(c, profile)
}

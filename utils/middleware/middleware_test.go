package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/auth"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type stubUsers struct {
	users map[uint]model.User
}

func (s *stubUsers) EnsureUser(_ context.Context, u *model.User) (*model.User, error) {
	if existing, ok := s.users[u.ID]; ok {
		return &existing, nil
	}
	s.users[u.ID] = *u
	return u, nil
}

func newTestApp(t *testing.T) (*fiber.App, *auth.JWTManager, *stubUsers) {
	t.Helper()

	jwtManager := auth.NewJWTManager(auth.JWTConfig{Secret: "middleware-test-secret", Expiry: time.Minute})
	users := &stubUsers{users: map[uint]model.User{}}
	m := NewAuthMiddleware(jwtManager, users, zap.NewNop())

	app := fiber.New()
	app.Get("/me", m.Required(), func(c *fiber.Ctx) error {
		u, _ := GetUser(c)
		return c.JSON(u)
	})
	app.Post("/teachers", m.Required(), m.RequireRole(model.RoleTeacher), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Post("/internal", RequireServiceKey("job-key"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app, jwtManager, users
}

func TestRequiredProvisionsUser(t *testing.T) {
	app, jwtManager, users := newTestApp(t)

	token, _ := jwtManager.GenerateAccessToken(5, "s@example.com", "Sam", "student")
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got model.User
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != 5 || got.Role != model.RoleStudent || got.DisplayName != "Sam" {
		t.Fatalf("user = %+v", got)
	}
	if _, ok := users.users[5]; !ok {
		t.Fatal("user was not provisioned")
	}
}

func TestRequiredKeepsStoredRole(t *testing.T) {
	app, jwtManager, users := newTestApp(t)
	users.users[9] = model.User{ID: 9, Role: model.RoleStudent}

	token, _ := jwtManager.GenerateAccessToken(9, "", "", "TEACHER")
	req := httptest.NewRequest(http.MethodPost, "/teachers", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestRequiredRejects(t *testing.T) {
	app, _, _ := newTestApp(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"bad scheme", "Basic abc"},
		{"bad token", "Bearer abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, _ := app.Test(req)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestQueryTokenForGet(t *testing.T) {
	app, jwtManager, _ := newTestApp(t)

	token, _ := jwtManager.GenerateAccessToken(6, "", "", "STUDENT")
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/me?access_token="+token, nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRequireServiceKey(t *testing.T) {
	app, _, _ := newTestApp(t)

	for key, want := range map[string]int{
		"":        http.StatusUnauthorized,
		"wrong":   http.StatusUnauthorized,
		"job-key": http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPost, "/internal", nil)
		if key != "" {
			req.Header.Set(ServiceKeyHeader, key)
		}
		resp, _ := app.Test(req)
		if resp.StatusCode != want {
			t.Errorf("key %q: status = %d, want %d", key, resp.StatusCode, want)
		}
	}
}

package handlers

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/MEmshousen/CodeRED2025-404NotFound/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func TestServiceErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: course 3", services.ErrNotFound), fiber.StatusNotFound},
		{fmt.Errorf("%w: only the professor", services.ErrForbidden), fiber.StatusForbidden},
		{fmt.Errorf("%w: cannot move", services.ErrInvalidTransition), fiber.StatusConflict},
		{fmt.Errorf("%w: bad window", services.ErrInvalidInput), fiber.StatusBadRequest},
		{services.ErrStorageUnavailable, fiber.StatusServiceUnavailable},
		{errors.New("connection reset"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		app := fiber.New()
		err := tt.err
		app.Get("/", func(c *fiber.Ctx) error {
			return ServiceError(c, zap.NewNop(), err)
		})

		resp, testErr := app.Test(httptest.NewRequest("GET", "/", nil))
		if testErr != nil {
			t.Fatalf("app.Test: %v", testErr)
		}
		if resp.StatusCode != tt.want {
			t.Errorf("%v: status %d, want %d", tt.err, resp.StatusCode, tt.want)
		}
	}
}

func TestDetail(t *testing.T) {
	err := fmt.Errorf("%w: only the course professor may do this", services.ErrForbidden)
	if got := detail(err, services.ErrForbidden); got != "Only the course professor may do this" {
		t.Fatalf("detail = %q", got)
	}
	if got := detail(services.ErrForbidden, services.ErrForbidden); got != "Forbidden" {
		t.Fatalf("detail = %q", got)
	}
}

func TestParseID(t *testing.T) {
	for raw, want := range map[string]bool{"1": true, "42": true, "0": false, "-1": false, "abc": false, "": false} {
		if _, ok := ParseID(raw); ok != want {
			t.Errorf("ParseID(%q) ok = %v, want %v", raw, ok, want)
		}
	}
}

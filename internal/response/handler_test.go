package response

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, h fiber.Handler) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Get("/", h)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestEnvelope(t *testing.T) {
	t.Run("Success omits error", func(t *testing.T) {
		code, body := render(t, func(c *fiber.Ctx) error {
			return Success(c, fiber.Map{"id": 1}, "ok")
		})
		assert.Equal(t, 200, code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "ok", body["message"])
		assert.NotContains(t, body, "error")
	})

	t.Run("Created", func(t *testing.T) {
		code, body := render(t, func(c *fiber.Ctx) error {
			return Created(c, fiber.Map{"id": 1}, "made")
		})
		assert.Equal(t, 201, code)
		assert.Equal(t, true, body["success"])
	})

	tests := []struct {
		name   string
		h      fiber.Handler
		status int
		code   Code
	}{
		{"Validation", func(c *fiber.Ctx) error {
			return ValidationError(c, map[string]string{"email": "required"})
		}, 400, CodeValidation},
		{"Missing token", func(c *fiber.Ctx) error { return Unauthorized(c, "no") }, 401, CodeUnauthorized},
		{"Bad token", func(c *fiber.Ctx) error { return TokenRejected(c, CodeInvalidToken, "bad") }, 401, CodeInvalidToken},
		{"Forbidden", func(c *fiber.Ctx) error { return Forbidden(c, "no") }, 403, CodeForbidden},
		{"Not found", func(c *fiber.Ctx) error { return NotFound(c, "User") }, 404, CodeNotFound},
		{"Conflict", func(c *fiber.Ctx) error { return Conflict(c, "taken") }, 409, CodeConflict},
		{"Internal", func(c *fiber.Ctx) error { return InternalError(c, "boom") }, 500, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := render(t, tt.h)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, false, body["success"])
			assert.NotContains(t, body, "data")

			problem, ok := body["error"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, string(tt.code), problem["code"])
		})
	}

	t.Run("Not found names the resource", func(t *testing.T) {
		_, body := render(t, func(c *fiber.Ctx) error { return NotFound(c, "User") })
		assert.Equal(t, "User not found", body["error"].(map[string]any)["message"])
	})
}

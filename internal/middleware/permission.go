package middleware

import (
	"github.com/Kyz7/authserver/internal/response"
	"github.com/gofiber/fiber/v2"
)

// SelfOnly lets a request through only when the :id path parameter names the
// authenticated user. current reports that user.
func SelfOnly(current func(c *fiber.Ctx) (uint, bool)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := current(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return response.BadRequest(c, "Invalid user ID", nil)
		}

		if uint(id) != userID {
			return response.Forbidden(c, "You can only access your own account")
		}

		return c.Next()
	}
}

package auth

import (
	"strings"

	"github.com/Kyz7/authserver/internal/response"
	"github.com/gofiber/fiber/v2"
)

// JWTProtected accepts an access token from the access_token cookie or an
// Authorization: Bearer header. The cookie wins when both are present.
func JWTProtected(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(AccessCookie)
		if token == "" {
			header := c.Get(fiber.HeaderAuthorization)
			if header == "" {
				return response.Unauthorized(c, "Missing authorization token")
			}

			scheme, value, ok := strings.Cut(header, " ")
			if !ok || scheme != "Bearer" || value == "" || strings.Contains(value, " ") {
				return response.TokenRejected(c, response.CodeInvalidTokenFormat, "Invalid token format")
			}
			token = value
		}

		session, err := svc.Authenticate(token)
		if err != nil {
			return response.TokenRejected(c, response.CodeInvalidToken, "Invalid or expired token")
		}

		c.Locals("user_id", session.UserID)
		c.SetUserContext(WithSession(c.UserContext(), session))
		return c.Next()
	}
}

package auth

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Session is the authentication state of one request. It is created by the
// middleware from a verified access token and by Service.Login/Register, and
// cleared by Service.Logout. Nothing else writes it.
type Session struct {
	UserID uint
	Email  string
}

func (s Session) Authenticated() bool {
	return s.UserID != 0
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFromContext(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey{}).(Session)
	return s
}

// CurrentUser returns the authenticated user id of the request.
func CurrentUser(c *fiber.Ctx) (uint, bool) {
	s := SessionFromContext(c.UserContext())
	return s.UserID, s.Authenticated()
}

// CacheIdentity is the user part of a response cache key.
func CacheIdentity(c *fiber.Ctx) string {
	id, ok := CurrentUser(c)
	if !ok {
		return ""
	}
	return strconv.FormatUint(uint64(id), 10)
}

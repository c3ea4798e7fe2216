package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/Kyz7/authserver/internal/reset"
	"github.com/Kyz7/authserver/internal/response"
	"github.com/Kyz7/authserver/internal/user"
	"github.com/Kyz7/authserver/internal/utils"
	"github.com/gofiber/fiber/v2"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Handler struct {
	svc     *Service
	cookies CookieConfig
}

func NewHandler(svc *Service, cookies CookieConfig) *Handler {
	return &Handler{svc: svc, cookies: cookies}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (b credentials) missing() map[string]string {
	fields := map[string]string{}
	if b.Email == "" {
		fields["email"] = "email is required"
	}
	if b.Password == "" {
		fields["password"] = "password is required"
	}
	return fields
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var body credentials
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}
	if fields := body.missing(); len(fields) > 0 {
		return response.ValidationError(c, fields)
	}

	result, err := h.svc.Register(c.UserContext(), body.Email, body.Password)
	if err != nil {
		return h.fail(c, err)
	}

	h.setSession(c, result)
	return response.Created(c, fiber.Map{"id": result.User.ID}, "Registration successful")
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var body credentials
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}
	if fields := body.missing(); len(fields) > 0 {
		return response.ValidationError(c, fields)
	}

	result, err := h.svc.Login(c.UserContext(), body.Email, body.Password)
	if err != nil {
		return h.fail(c, err)
	}

	h.setSession(c, result)
	return response.Success(c, fiber.Map{
		"id":         result.User.ID,
		"expires_in": int(h.cookies.AccessTTL.Seconds()),
	}, "Login successful")
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	c.SetUserContext(WithSession(c.UserContext(), h.svc.Logout()))
	h.clearCookie(c, AccessCookie)
	h.clearCookie(c, RefreshCookie)
	return response.Success(c, nil, "Logout successful")
}

func (h *Handler) Refresh(c *fiber.Ctx) error {
	refreshToken := c.Cookies(RefreshCookie)
	if refreshToken == "" {
		return response.Unauthorized(c, "Access denied. No refresh token provided.")
	}

	access, err := h.svc.Refresh(refreshToken)
	if err != nil {
		return h.fail(c, err)
	}

	h.setCookie(c, AccessCookie, access, h.cookies.AccessTTL)
	return response.Success(c, fiber.Map{
		"expires_in": int(h.cookies.AccessTTL.Seconds()),
	}, "Token refreshed successfully")
}

func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}
	if body.Email == "" {
		return response.ValidationError(c, map[string]string{"email": "email is required"})
	}

	if err := h.svc.RequestPasswordReset(c.UserContext(), body.Email); err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, nil, "If an account exists for this email, a reset link has been sent")
}

func (h *Handler) ValidateResetPassword(c *fiber.Ctx) error {
	email, tok := c.Query("email"), c.Query("token")
	if email == "" || tok == "" {
		return response.Forbidden(c, "Access denied. No token and or email provided.")
	}

	valid, err := h.svc.ValidatePasswordReset(c.UserContext(), email, tok)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, fiber.Map{"valid": valid}, "Reset token checked")
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	fields := map[string]string{}
	if body.Email == "" {
		fields["email"] = "email is required"
	}
	if body.Token == "" {
		fields["token"] = "token is required"
	}
	if body.Password == "" {
		fields["password"] = "password is required"
	}
	if len(fields) > 0 {
		return response.ValidationError(c, fields)
	}

	if err := h.svc.PerformPasswordReset(c.UserContext(), body.Email, body.Token, body.Password); err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, nil, "Password reset. Please login with your new password.")
}

// fail maps domain errors to responses. Anything unmapped goes to the
// app error handler as a 500.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrPasswordTooLong):
		return response.ValidationError(c, map[string]string{
			"password": fmt.Sprintf("password must be at most %d bytes", utils.MaxPasswordBytes),
		})
	case errors.Is(err, ErrValidation):
		return response.ValidationError(c, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return response.Unauthorized(c, "Invalid credentials")
	case errors.Is(err, user.ErrUserExists):
		return response.Conflict(c, "Email already registered")
	case errors.Is(err, reset.ErrResetTokenNotFound):
		return response.Forbidden(c, "Token not found. Please try the reset password process again.")
	}
	return err
}

func (h *Handler) setSession(c *fiber.Ctx, result *Result) {
	c.SetUserContext(WithSession(c.UserContext(), result.Session))
	h.setCookie(c, AccessCookie, result.Tokens.AccessToken, h.cookies.AccessTTL)
	h.setCookie(c, RefreshCookie, result.Tokens.RefreshToken, h.cookies.RefreshTTL)
}

func (h *Handler) setCookie(c *fiber.Ctx, name, value string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

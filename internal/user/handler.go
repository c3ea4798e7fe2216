package user

import (
	"errors"

	"github.com/Kyz7/authserver/internal/response"
	"github.com/gofiber/fiber/v2"
)

// CurrentUserFunc returns the authenticated user id for the request.
type CurrentUserFunc func(c *fiber.Ctx) (uint, bool)

type Handler struct {
	svc     *Service
	current CurrentUserFunc
}

func NewHandler(svc *Service, current CurrentUserFunc) *Handler {
	return &Handler{svc: svc, current: current}
}

func (h *Handler) GetMe(c *fiber.Ctx) error {
	id, ok := h.current(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	return h.render(c, id)
}

func (h *Handler) GetUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid user ID", nil)
	}
	return h.render(c, uint(id))
}

func (h *Handler) render(c *fiber.Ctx, id uint) error {
	u, err := h.svc.Get(c.UserContext(), id)
	if errors.Is(err, ErrUserNotFound) {
		return response.NotFound(c, "User")
	}
	if err != nil {
		return err
	}
	return response.Success(c, u, "User retrieved successfully")
}

// UpdateUser and DeleteUser act on the caller's own record; the route is
// guarded by middleware.SelfOnly.
func (h *Handler) UpdateUser(c *fiber.Ctx) error {
	id, ok := h.current(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var body struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	u, err := h.svc.UpdateProfile(c.UserContext(), id, body.FirstName, body.LastName)
	if errors.Is(err, ErrUserNotFound) {
		return response.NotFound(c, "User")
	}
	if err != nil {
		return err
	}
	return response.Success(c, u, "User updated successfully")
}

func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	id, ok := h.current(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	u, err := h.svc.Delete(c.UserContext(), id)
	if errors.Is(err, ErrUserNotFound) {
		return response.NotFound(c, "User")
	}
	if err != nil {
		return err
	}
	return response.Success(c, u, "User deleted successfully")
}

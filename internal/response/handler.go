// Package response writes the JSON envelope every endpoint answers with.
//
//	{"success": true,  "message": "...", "data": {...}}
//	{"success": false, "error": {"code": "...", "message": "...", "details": ...}}
package response

import (
	"github.com/gofiber/fiber/v2"
)

// Code is the machine-readable error.code value clients branch on.
type Code string

const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidTokenFormat Code = "INVALID_TOKEN_FORMAT"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeHTTP               Code = "HTTP_ERROR"
	CodeInternal           Code = "INTERNAL_ERROR"
)

type Envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data,omitempty"`
	Error   *Problem `json:"error,omitempty"`
}

type Problem struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func Success(c *fiber.Ctx, data any, message string) error {
	return c.JSON(Envelope{Success: true, Message: message, Data: data})
}

func Created(c *fiber.Ctx, data any, message string) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Success: true, Message: message, Data: data})
}

// Error writes a failure envelope with the given status.
func Error(c *fiber.Ctx, status int, code Code, message string, details any) error {
	return c.Status(status).JSON(Envelope{
		Error: &Problem{Code: code, Message: message, Details: details},
	})
}

func BadRequest(c *fiber.Ctx, message string, details any) error {
	return Error(c, fiber.StatusBadRequest, CodeBadRequest, message, details)
}

// ValidationError reports missing or malformed fields, keyed by field name
// when details is a map.
func ValidationError(c *fiber.Ctx, details any) error {
	return Error(c, fiber.StatusBadRequest, CodeValidation, "Validation failed", details)
}

// Unauthorized is the generic 401. Token failures use TokenRejected so the
// client can tell a missing token from a bad one.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func TokenRejected(c *fiber.Ctx, code Code, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message, nil)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, CodeForbidden, message, nil)
}

func NotFound(c *fiber.Ctx, resource string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, resource+" not found", nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message, nil)
}

func InternalError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeInternal, message, nil)
}

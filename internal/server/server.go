package server

import (
	"errors"
	"log"

	"github.com/Kyz7/authserver/internal/auth"
	"github.com/Kyz7/authserver/internal/cache"
	"github.com/Kyz7/authserver/internal/response"
	"github.com/Kyz7/authserver/internal/user"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

// Deps is everything the HTTP layer needs. Build assembles it from config.
type Deps struct {
	Auth        *auth.Service
	Users       *user.Service
	Cache       cache.Store
	Registry    *prometheus.Registry
	Cookies     auth.CookieConfig
	CORSOrigins string
}

func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "authserver",
		BodyLimit:    1024 * 1024,
		ErrorHandler: errorHandler,
	})

	SetupRoutes(app, d)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return response.Error(c, fe.Code, response.CodeHTTP, fe.Message, nil)
	}

	if oe, ok := oops.AsOops(err); ok {
		log.Printf("❌ %s %s failed [%s]: %v", c.Method(), c.Path(), oe.Code(), err)
	} else {
		log.Printf("❌ %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return response.InternalError(c, "Internal server error")
}

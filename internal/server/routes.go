package server

import (
	"strconv"

	"github.com/Kyz7/authserver/internal/auth"
	"github.com/Kyz7/authserver/internal/cache"
	"github.com/Kyz7/authserver/internal/middleware"
	"github.com/Kyz7/authserver/internal/user"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(app *fiber.App, d Deps) {
	// Middleware
	app.Use(logger.New())
	origins := d.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		// fiber refuses credentials with a wildcard origin
		AllowCredentials: origins != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Auth API is running",
		})
	})

	if d.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	// ==========================================
	// AUTH ROUTES (No authentication required)
	// ==========================================
	authHandler := auth.NewHandler(d.Auth, d.Cookies)
	authGroup := app.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/logout", authHandler.Logout)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Post("/forgot-password", authHandler.ForgotPassword)
	authGroup.Get("/reset-password", authHandler.ValidateResetPassword)
	authGroup.Post("/reset-password", authHandler.ResetPassword)

	// ==========================================
	// USERS (authenticated, own record only, reads cached per user)
	// ==========================================
	userHandler := user.NewHandler(d.Users, auth.CurrentUser)
	userGroup := app.Group("/users")
	userGroup.Use(auth.JWTProtected(d.Auth))

	userGroup.Get("/me", cache.New(cache.Config{
		Store:    d.Cache,
		Identity: auth.CacheIdentity,
		Tags:     currentUserTags,
	}), userHandler.GetMe)
	userGroup.Get("/:id", middleware.SelfOnly(auth.CurrentUser), cache.New(cache.Config{
		Store:    d.Cache,
		Identity: auth.CacheIdentity,
		Tags:     paramUserTags,
	}), userHandler.GetUser)
	userGroup.Put("/:id", middleware.SelfOnly(auth.CurrentUser), userHandler.UpdateUser)
	userGroup.Delete("/:id", middleware.SelfOnly(auth.CurrentUser), userHandler.DeleteUser)
}

func currentUserTags(c *fiber.Ctx) []string {
	id, ok := auth.CurrentUser(c)
	if !ok {
		return nil
	}
	return []string{cache.UserTag(id)}
}

// paramUserTags tags a rendering of /users/:id with the record it shows.
func paramUserTags(c *fiber.Ctx) []string {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return nil
	}
	return []string{cache.UserTag(uint(id))}
}

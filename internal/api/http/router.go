package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/authkit/auth-service/internal/api/http/handlers"
	"github.com/authkit/auth-service/internal/auth"
	"github.com/authkit/auth-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
		app.Get("/health/metrics", cfg.Health.Metrics)
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/validate", cfg.Auth.Validate)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Auth.Me)

	users := api.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/profile", auth.RequireAnyRole(), cfg.Users.Profile)

	admin := users.Group("", auth.RequireRole(domain.RoleAdmin))
	admin.Get("/all", cfg.Users.List)
	admin.Get("/audit", cfg.Users.Audit)
	admin.Get("/:id", cfg.Users.Get)
	admin.Put("/:id/enabled", cfg.Users.SetEnabled)
	admin.Put("/:id/password", cfg.Users.ChangePassword)
	admin.Delete("/:id", cfg.Users.Delete)
}

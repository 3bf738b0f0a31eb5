package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/iCCupCalico/bot/internal/api/http/handlers"
	"github.com/iCCupCalico/bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	AdminTickets   *handlers.AdminTicketsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)
	admin.Get("/tickets", cfg.AdminTickets.ListTickets)
	admin.Get("/tickets/:id", cfg.AdminTickets.GetTicket)
	admin.Post("/tickets/:id/reply", cfg.AdminTickets.ReplyTicket)
	admin.Post("/tickets/:id/close", cfg.AdminTickets.CloseTicket)
}

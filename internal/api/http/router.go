package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/ticket-waitlist/internal/api/http/handlers"
	"github.com/spec-kit/ticket-waitlist/internal/auth"
	"github.com/spec-kit/ticket-waitlist/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *observability.Metrics
	Events         *handlers.EventsHandler
	Waitlist       *handlers.WaitlistHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	requireUser := cfg.AuthMiddleware.Handle

	events := app.Group("/events")
	events.Post("", requireUser, cfg.Events.CreateEvent)
	events.Get("/:eventId", cfg.Events.GetEvent)
	events.Patch("/:eventId", requireUser, cfg.Events.UpdateEvent)
	events.Get("/:eventId/availability", cfg.Waitlist.Availability)
	events.Post("/:eventId/waiting-list", requireUser, cfg.Waitlist.Join)
	events.Get("/:eventId/waiting-list/me", requireUser, cfg.Waitlist.Position)

	app.Post("/waiting-list/:entryId/purchase", requireUser, cfg.Waitlist.Purchase)
}

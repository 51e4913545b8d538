package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/handoff-service/internal/api/http/handlers"
	"github.com/spec-kit/handoff-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health            *handlers.HealthHandler
	Handoff           *handlers.HandoffHandler
	Webhook           *handlers.WebhookHandler
	Stream            *handlers.StreamHandler
	SessionMiddleware *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/webhooks/:provider/:orgId", cfg.Webhook.Receive)

	sessions := app.Group("/handoff/sessions")
	sessions.Post("/", cfg.Handoff.Initialize)
	sessions.Post("/:conversationId/messages", cfg.SessionMiddleware.Handle, cfg.Handoff.SendMessage)
	sessions.Delete("/:conversationId", cfg.SessionMiddleware.Handle, cfg.Handoff.End)
	sessions.Get("/:conversationId/timeline", cfg.SessionMiddleware.Handle, cfg.Handoff.Timeline)
	sessions.Get("/:conversationId/stream", cfg.SessionMiddleware.Handle, cfg.Stream.Stream)
}

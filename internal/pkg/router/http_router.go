package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/expensehq/expensehq/app/controllers"
	"github.com/expensehq/expensehq/internal/pkg/env"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Wire the webhook pipeline before registering routes
	controllers.InitializeWebhookController()

	h.registerWebhookRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func (h HttpRouter) registerWebhookRoutes(app *fiber.App) {
	// Billing provider webhooks (no CSRF, signature-verified in the pipeline).
	// The limiter shields the DB from floods; the provider retries on 429.
	app.Post("/webhooks/billing", limiter.New(limiter.Config{Max: 120}), controllers.HandleBillingWebhook)
}

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("ADMIN_USER", "admin"): env.GetEnv("ADMIN_PASSWORD", "admin"),
		},
	}))

	// Dead-letter remediation
	adminGroup.Get("/dlq", controllers.HandleAdminDeadLetters)
	adminGroup.Get("/dlq/:event_id", controllers.HandleAdminDeadLetterShow)
	adminGroup.Post("/dlq/:event_id/replay", controllers.HandleAdminDeadLetterReplay)

	// Ledger inspection + throughput counters
	adminGroup.Get("/webhooks", controllers.HandleAdminWebhookEvents)
	adminGroup.Get("/webhooks/stats", controllers.HandleAdminWebhookStats)
}

// Package router wires the HTTP surface onto a chi router.
package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/ecomkit/cyberpay/handler"
	"github.com/ecomkit/cyberpay/infra/middle"
)

// Config holds the handlers and settings the routes need.
type Config struct {
	Payments    *handler.PaymentHandler
	Webhooks    *handler.WebhookHandler
	Health      *handler.HealthHandler
	AdminAPIKey string
}

// Routes registers every route of the service.
func Routes(r chi.Router, cfg Config) {
	r.Get("/health", cfg.Health.Health)

	// The webhook surface is verified by signature, not by API key; the
	// processor probes /webhook/health before activating delivery.
	r.Post("/webhook", cfg.Webhooks.HandleNotification)
	r.Get("/webhook/health", cfg.Webhooks.HandleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/payments", cfg.Payments.ProcessPayment)
		r.Get("/payments/{orderID}", cfg.Payments.GetTransaction)

		// Administrative transitions.
		r.Group(func(r chi.Router) {
			r.Use(middle.APIKeyAuth(cfg.AdminAPIKey))
			r.Post("/payments/{orderID}/capture", cfg.Payments.CapturePayment)
			r.Post("/payments/{orderID}/void", cfg.Payments.VoidPayment)
			r.Post("/payments/{orderID}/refund", cfg.Payments.RefundPayment)
		})
	})
}

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Reviews
		r.Post("/reviews", h.CreateReview)
		r.Get("/reviews", h.ListReviews)
		r.Get("/reviews/{id}", h.GetReview)
		r.Post("/reviews/{id}/decision", h.RecordDecision)
		r.Get("/reviews/{id}/decision", h.GetDecision)
		r.Get("/reviews/{id}/wait", h.AwaitDecision)
		r.Get("/reviews/{id}/deliveries", h.ListDeliveries)

		// Delivery confirmations
		r.Post("/deliveries/{id}/status", h.ConfirmDelivery)

		// Routing rules
		r.Get("/routing-rules", h.ListRules)
		r.Post("/routing-rules", h.UpsertRule)
		r.Get("/routing-rules/{id}", h.GetRule)
		r.Delete("/routing-rules/{id}", h.DeleteRule)

		// Notifiers
		r.Get("/notifiers", h.ListNotifiers)
		r.Post("/notifiers/{target}/test", h.TestNotifier)

		// Stats and health
		r.Get("/stats", h.Stats)
		r.Get("/health", h.Health)
	})
}

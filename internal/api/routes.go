package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router: dashboard endpoints under /api, and the
// public tracking surface at the root so minted links stay short.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", h.CreateCampaign)
			r.Get("/", h.ListCampaigns)
			r.Get("/{id}", h.GetCampaign)
			r.Get("/{id}/stats", h.CampaignStats)
			r.Get("/{id}/events", h.CampaignEvents)
			r.Post("/{id}/audience", h.ResolveAudience)
			r.Post("/{id}/send", h.SendCampaign)
			r.Post("/{id}/cancel", h.CancelCampaign)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Post("/", h.CreateClient)
			r.Get("/", h.ListClients)
			r.Get("/{id}", h.GetClient)
			r.Put("/{id}", h.UpdateClient)
			r.Post("/{id}/tags", h.AddClientTags)
			r.Put("/{id}/subscription", h.SetClientSubscription)
		})
	})

	// Public endpoints hit from recipient inboxes. No auth, no JSON envelope.
	r.Get("/tracking/open/{token}", h.TrackOpen)
	r.Get("/tracking/click/{token}", h.TrackClick)
	r.Get("/unsubscribe/{token}", h.Unsubscribe)

	return r
}

package router

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/notification-campaigns/internal/controller"
	"github.com/unclebandit/notification-campaigns/internal/handler"
	"github.com/unclebandit/notification-campaigns/internal/metrics"
)

type Handlers struct {
	Campaigns  *controller.CampaignController
	Recipients *controller.RecipientController
	Status     *handler.StatusHandler
}

func New(h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.HTTP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", handler.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	// Recipient routes
	r.Route("/recipients", func(r chi.Router) {
		r.Post("/", h.Recipients.CreateRecipient)
		r.Get("/", h.Recipients.ListRecipients)
		r.Get("/{id}", h.Recipients.GetRecipient)
		r.Patch("/{id}", h.Recipients.UpdateRecipient)
	})

	// Campaign routes
	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", h.Campaigns.CreateCampaign)
		r.Get("/", h.Campaigns.ListCampaigns)
		r.Get("/{id}", h.Campaigns.GetCampaign)
		r.Get("/{id}/status", h.Status.GetCampaignStatus)
		r.Post("/{id}/dispatch", h.Campaigns.DispatchCampaign)
	})

	return r
}

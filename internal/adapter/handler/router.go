package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handler *HTTPHandler
	IsAdmin func(userID int64) bool
	Logger  *zap.Logger
}

func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(Recovery(cfg.Logger))
	r.Use(RequestID)
	r.Use(Logging(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader, adminIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	h := cfg.Handler
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users/{user_id}", func(r chi.Router) {
			r.Post("/events", h.PostEvent)
			r.Get("/messages", h.GetMessages)
			r.Get("/cart", h.GetCart)
			r.Get("/orders", h.GetUserOrders)
		})
		r.Get("/catalog/{query}", h.FindProducts)
		r.Get("/orders/{order_id}", h.GetOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminOnly(cfg.IsAdmin))
			r.Get("/orders", h.AdminListOrders)
			r.Put("/orders/{order_id}/status", h.AdminUpdateStatus)
			r.Post("/catalog/reload", h.AdminReloadCatalog)
			r.Get("/catalog/status", h.AdminCatalogStatus)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

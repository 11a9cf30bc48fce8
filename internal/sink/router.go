package sink

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// NewRouter serves the webhook receiver and the metrics it produces.
func NewRouter(secret string, metrics *Metrics) *chi.Mux {
	h := NewHandlers(secret, metrics)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/health", h.Health)
	r.Post("/events", h.Events)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

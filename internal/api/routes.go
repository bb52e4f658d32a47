package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes. adminToken protects the /sync group;
// an empty token leaves the group open, which is only acceptable behind a
// private network boundary and is warned about at startup.
func SetupRoutes(h *Handlers, adminToken string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Signature"},
		MaxAge:         300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	// Webhook ingestion (authenticity handled per-handler via HMAC)
	r.Post("/webhook/highlevel", h.HandleWebhook)
	r.Post("/webhook/highlevel-workflow", h.HandleWorkflowWebhook)

	// Administrative sync routes
	r.Route("/sync", func(r chi.Router) {
		if adminToken != "" {
			r.Use(bearerAuth(adminToken))
		}
		r.Post("/trigger", h.TriggerResync)
		r.Get("/stats", h.GetSyncStats)
		r.Post("/mark-customer/{sourceID}", h.MarkCustomer)
	})

	return r
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	expected := "Bearer " + token
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			got := req.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"message":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

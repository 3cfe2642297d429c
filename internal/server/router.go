package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthService reports readiness of the service's dependencies.
type HealthService interface {
	Probe(ctx context.Context) error
}

// RouterDependencies collects handler dependencies.
type RouterDependencies struct {
	Health            HealthService
	API               *APIHandlers
	AdminPasswordHash string
}

// NewRouter wires the HTTP routes exposed by the wallet service.
func NewRouter(logger *slog.Logger, deps RouterDependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		payload := map[string]any{"status": "ok"}

		if deps.Health != nil {
			if err := deps.Health.Probe(ctx); err != nil {
				logger.Error("health probe failed", "error", err)
				status = http.StatusServiceUnavailable
				payload["status"] = "degraded"
				payload["error"] = err.Error()
			}
		}

		respondJSON(w, status, payload)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts", deps.API.createAccount)
		r.Get("/accounts/{accountID}", deps.API.getAccount)
		r.Post("/accounts/{accountID}/transfers", deps.API.createTransfer)
		r.Get("/accounts/{accountID}/transactions", deps.API.listTransactions)

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuth(deps.AdminPasswordHash))
			r.Get("/accounts", deps.API.adminListAccounts)
			r.Put("/accounts/{accountID}/balance", deps.API.adminAdjustBalance)
		})
	})

	return r
}

package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/datascope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/datascope/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/datascope/internal/httpserver/mw"
)

func init() { Register(registerCollect) }

func registerCollect(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateLimitBurst,
		RefillPerIPPerMin: d.RateLimitPerMin,
		MaxEntries:        10_000,
		TrustProxy:        d.TrustProxy,
	})
	api := r.With(mw.EnforceHost(d.AllowedHosts, d.Logger))
	api.Get("/api/domains", handlers.Domains(d))
	api.With(limit).Get("/api/collect", handlers.Collect(d))
	api.With(limit).Post("/api/collect", handlers.Collect(d))
}

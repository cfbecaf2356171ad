package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/datascope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/datascope/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/datascope/internal/httpserver/mw"
)

func init() { Register(registerCache) }

func registerCache(r chi.Router, d deps.Deps) {
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger)).
		Delete("/api/cache/{domain}", handlers.ClearCache(d))
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/datascope/internal/logger"
)

type clearCacheResponse struct {
	Domain  string `json:"domain"`
	Removed int    `json:"removed"`
}

// ClearCache drops every cached result of the {domain} path parameter.
func ClearCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "domain")

		removed, err := d.Engine.ClearCache(r.Context(), name)
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error(), d.Logger)
			return
		case err != nil:
			d.Logger.Error("cache clear failed",
				logger.String("domain", name),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "cache clear failed", d.Logger)
			return
		}

		d.Logger.Info("cache cleared",
			logger.String("domain", name),
			logger.Int("removed", removed),
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusOK, clearCacheResponse{Domain: domain.NormalizeDomain(name), Removed: removed}, d.Logger)
	}
}

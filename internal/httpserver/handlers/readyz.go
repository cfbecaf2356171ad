package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/datascope/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready   bool `json:"ready"`
	Domains int  `json:"domains"`
}

func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Engine == nil {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{}, d.Logger)
			return
		}
		writeJSON(w, http.StatusOK, readyzResponse{
			Ready:   true,
			Domains: len(d.Engine.Domains()),
		}, d.Logger)
	}
}

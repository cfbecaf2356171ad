package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/datascope/internal/httpserver/deps"
)

type domainsResponse struct {
	Domains []string `json:"domains"`
	// Other names fall back to a generic web search.
	Fallback bool `json:"fallback"`
}

func Domains(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := d.Engine.Domains()
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, domainsResponse{Domains: names, Fallback: true}, d.Logger)
	}
}

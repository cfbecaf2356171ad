package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/datascope/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
}

type infraResponse struct {
	CollectionMode string                     `json:"collection_mode"`
	Components     map[string]componentStatus `json:"components"`
}

// Infra reports which capabilities the engine started with.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"cache": {
				OK:   d.CacheBackend != "",
				Mode: d.CacheBackend,
			},
			"interactive": interactiveStatus(d),
			"analysis":    analysisStatus(d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			CollectionMode: determineCollectionMode(components),
			Components:     components,
		}, d.Logger)
	}
}

func interactiveStatus(d deps.Deps) componentStatus {
	if d.Engine == nil || !d.Engine.InteractiveEnabled() {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "interactive-sources-skipped",
		}
	}
	return componentStatus{OK: true, Mode: "browser"}
}

func analysisStatus(d deps.Deps) componentStatus {
	if !d.AnalysisEnabled {
		return componentStatus{
			OK:     true,
			Mode:   "generic",
			Impact: "domain-statistics-disabled",
		}
	}
	return componentStatus{OK: true, Mode: "specialized"}
}

// determineCollectionMode is "full" when every component is ok, "reduced" otherwise.
func determineCollectionMode(components map[string]componentStatus) string {
	for _, c := range components {
		if !c.OK {
			return "reduced"
		}
	}
	return "full"
}

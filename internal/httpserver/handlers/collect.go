package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/orchestrator"
)

const (
	filterPrefix = "filter."
	maxBodyBytes = 1 << 20
)

// collectRequest is the POST body. Credentials are only accepted here, never in a URL.
type collectRequest struct {
	Domain      string                        `json:"domain"`
	Location    string                        `json:"location"`
	Filters     map[string]string             `json:"filters"`
	Refresh     bool                          `json:"refresh"`
	Credentials map[string]domain.Credentials `json:"credentials"`
}

// Collect runs a collection.
//
//	GET  /api/collect?domain=cybersecurity&location=us&refresh=true&filter.vendor=Cisco
//	POST /api/collect {"domain": "...", "credentials": {"Lemon8": {"username": "...", "password": "..."}}}
func Collect(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			req collectRequest
			err error
		)
		if r.Method == http.MethodPost {
			req, err = decodeCollectBody(r)
		} else {
			req, err = parseCollectQuery(r)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), d.Logger)
			return
		}

		d.Logger.Info("collect request",
			logger.String("domain", req.Domain),
			logger.String("location", req.Location),
			logger.Bool("refresh", req.Refresh),
			logger.Int("credentials", len(req.Credentials)))

		res, err := d.Engine.Collect(r.Context(), orchestrator.Request{
			Domain:      req.Domain,
			Location:    req.Location,
			Filters:     req.Filters,
			UseCache:    !req.Refresh,
			Credentials: req.Credentials,
		})
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error(), d.Logger)
			return
		case err != nil:
			d.Logger.Error("collection failed", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "collection failed", d.Logger)
			return
		}

		if res.FromCache {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		writeJSON(w, http.StatusOK, res, d.Logger)
	}
}

func parseCollectQuery(r *http.Request) (collectRequest, error) {
	q := r.URL.Query()
	req := collectRequest{
		Domain:   strings.TrimSpace(q.Get("domain")),
		Location: strings.TrimSpace(q.Get("location")),
	}
	if v := q.Get("refresh"); v != "" {
		refresh, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.New("refresh must be a boolean")
		}
		req.Refresh = refresh
	}
	for key, values := range q {
		name, ok := strings.CutPrefix(key, filterPrefix)
		if !ok || name == "" || len(values) == 0 {
			continue
		}
		if req.Filters == nil {
			req.Filters = make(map[string]string)
		}
		req.Filters[name] = values[0]
	}
	if req.Domain == "" {
		return req, errors.New("domain is required")
	}
	return req, nil
}

func decodeCollectBody(r *http.Request) (collectRequest, error) {
	var req collectRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, errors.New("invalid JSON body")
	}
	req.Domain = strings.TrimSpace(req.Domain)
	if req.Domain == "" {
		return req, errors.New("domain is required")
	}
	return req, nil
}

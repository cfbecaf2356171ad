package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/orchestrator"
)

type fakeEngine struct {
	mu          sync.Mutex
	requests    []orchestrator.Request
	cleared     []string
	fromCache   bool
	err         error
	interactive bool
}

func (f *fakeEngine) Collect(_ context.Context, req orchestrator.Request) (*domain.CollectionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	res := &domain.CollectionResult{RunID: "run-1", Domain: domain.NormalizeDomain(req.Domain), Location: req.Location, FromCache: f.fromCache}
	res.SetRecords(nil)
	return res, nil
}

func (f *fakeEngine) ClearCache(_ context.Context, name string) (int, error) {
	if domain.NormalizeDomain(name) == "" {
		return 0, fmt.Errorf("%w: empty domain", domain.ErrInvalidRequest)
	}
	f.cleared = append(f.cleared, name)
	return 2, nil
}

func (f *fakeEngine) Domains() []string        { return []string{"cybersecurity", "healthcare"} }
func (f *fakeEngine) InteractiveEnabled() bool { return f.interactive }

func testDeps(engine *fakeEngine) deps.Deps {
	return deps.Deps{
		Engine:          engine,
		Logger:          logger.Nop(),
		StartTime:       time.Now(),
		Version:         "test",
		CacheBackend:    "memory",
		AnalysisEnabled: true,
		RequestTimeout:  5 * time.Second,
		RateLimitBurst:  100,
		RateLimitPerMin: 100,
	}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCollectGET(t *testing.T) {
	engine := &fakeEngine{}
	h := NewRouter(testDeps(engine))

	rec := serve(h, httptest.NewRequest(http.MethodGet,
		"/api/collect?domain=cybersecurity&location=us&refresh=true&filter.vendor=Cisco&other=x", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Len(t, engine.requests, 1)
	assert.Equal(t, orchestrator.Request{
		Domain:   "cybersecurity",
		Location: "us",
		Filters:  map[string]string{"vendor": "Cisco"},
		UseCache: false,
	}, engine.requests[0])

	var res domain.CollectionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "run-1", res.RunID)
	assert.NotNil(t, res.Records)
}

func TestCollectPOSTWithCredentials(t *testing.T) {
	engine := &fakeEngine{fromCache: true}
	h := NewRouter(testDeps(engine))

	body := `{"domain":"social-media","credentials":{"Lemon8":{"username":"mia","password":"pw"}}}`
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	require.Len(t, engine.requests, 1)
	assert.True(t, engine.requests[0].UseCache)
	assert.Equal(t, map[string]domain.Credentials{"Lemon8": {Username: "mia", Password: "pw"}}, engine.requests[0].Credentials)
}

func TestCollectBadRequests(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
		err  error
	}{
		{name: "missing domain", req: httptest.NewRequest(http.MethodGet, "/api/collect?location=us", nil)},
		{name: "bad refresh", req: httptest.NewRequest(http.MethodGet, "/api/collect?domain=x&refresh=maybe", nil)},
		{name: "malformed body", req: httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(`{"domain":`))},
		{name: "unknown field", req: httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(`{"domain":"x","token":"y"}`))},
		{
			name: "rejected by the engine",
			req:  httptest.NewRequest(http.MethodGet, "/api/collect?domain=x", nil),
			err:  fmt.Errorf("%w: bad filters", domain.ErrInvalidRequest),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(testDeps(&fakeEngine{err: tt.err}))

			rec := serve(h, tt.req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestCollectInternalError(t *testing.T) {
	h := NewRouter(testDeps(&fakeEngine{err: fmt.Errorf("boom")}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/collect?domain=x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestDomains(t *testing.T) {
	h := NewRouter(testDeps(&fakeEngine{}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/domains", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"domains":["cybersecurity","healthcare"],"fallback":true}`, rec.Body.String())
}

func TestClearCacheIsCIDRRestricted(t *testing.T) {
	engine := &fakeEngine{}
	d := testDeps(engine)
	d.AllowedCIDRS = []string{"10.0.0.0/8"}
	h := NewRouter(d)

	outside := httptest.NewRequest(http.MethodDelete, "/api/cache/real-estate", nil)
	outside.RemoteAddr = "192.0.2.1:4000"
	assert.Equal(t, http.StatusForbidden, serve(h, outside).Code)
	assert.Empty(t, engine.cleared)

	inside := httptest.NewRequest(http.MethodDelete, "/api/cache/real-estate", nil)
	inside.RemoteAddr = "10.1.2.3:4000"
	rec := serve(h, inside)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"domain":"real_estate","removed":2}`, rec.Body.String())
	assert.Equal(t, []string{"real-estate"}, engine.cleared)
}

func TestEnforceHost(t *testing.T) {
	d := testDeps(&fakeEngine{})
	d.AllowedHosts = []string{"datascope.internal", "*.example.com"}
	h := NewRouter(d)

	tests := []struct {
		host string
		want int
	}{
		{"datascope.internal:8080", http.StatusOK},
		{"ui.example.com", http.StatusOK},
		{"evil.test", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/domains", nil)
		req.Host = tt.host
		assert.Equal(t, tt.want, serve(h, req).Code, tt.host)
	}
}

func TestCollectIsRateLimited(t *testing.T) {
	d := testDeps(&fakeEngine{})
	d.RateLimitBurst = 2
	d.RateLimitPerMin = 1
	h := NewRouter(d)

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for range 3 {
		last = serve(h, httptest.NewRequest(http.MethodGet, "/api/collect?domain=x", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
	// probes are not limited
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestProbesAndInfra(t *testing.T) {
	h := NewRouter(testDeps(&fakeEngine{}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true,"domains":2}`, rec.Body.String())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/infra", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var infra struct {
		CollectionMode string `json:"collection_mode"`
		Components     map[string]struct {
			OK   bool   `json:"ok"`
			Mode string `json:"mode"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infra))
	assert.Equal(t, "reduced", infra.CollectionMode)
	assert.Equal(t, "disabled", infra.Components["interactive"].Mode)
	assert.Equal(t, "memory", infra.Components["cache"].Mode)

	full := NewRouter(testDeps(&fakeEngine{interactive: true}))
	rec = serve(full, httptest.NewRequest(http.MethodGet, "/api/infra", nil))
	assert.Contains(t, rec.Body.String(), `"collection_mode":"full"`)
}

package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"embedgate.io/internal/access"
	"embedgate.io/internal/audit"
	"embedgate.io/internal/obs"
	"embedgate.io/internal/refresh"
	"embedgate.io/internal/stream"
)

// ReadyProbe reports readiness (DB ping when a DB is configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	resolver   *access.Resolver
	coalescer  *refresh.Coalescer
	stream     *stream.Stream
	apiKeyHash string

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, resolver *access.Resolver, coalescer *refresh.Coalescer, st *stream.Stream, apiKeyHash string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		resolver:   resolver,
		coalescer:  coalescer,
		stream:     st,
		apiKeyHash: apiKeyHash,
		rateBurst:  20,
		ratePerSec: 10,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// token issuance for embedding hosts
	a.mux.HandleFunc("/v1/auth/embed-token", a.handleEmbedToken)

	// access resolution
	a.mux.HandleFunc("/v1/reports/", a.handleReportResource)

	// dataset refreshes
	a.mux.HandleFunc("/v1/workspaces/", a.handleWorkspaceResource)

	// live refresh events
	a.mux.HandleFunc("/v1/streams/refreshes", a.StreamRefreshes)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "embedgate-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":              "embedgate-api",
		"time":              time.Now().UTC().Format(time.RFC3339),
		"version":           a.version,
		"refresh_window_ms": a.refreshWindowMs(),
	})
}

func (a *API) refreshWindowMs() int64 {
	if a.coalescer == nil {
		return 0
	}
	return a.coalescer.Window().Milliseconds()
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by every route.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service readiness probe passes.",
	})
)

// Domain metrics.
var (
	accessResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_resolutions_total",
			Help: "Page access resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	refreshRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_requests_total",
			Help: "Dataset refresh requests by coalescer decision.",
		},
		[]string{"status"},
	)

	refreshUpstreamTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_upstream_calls_total",
			Help: "Upstream refresh invocations by result.",
		},
		[]string{"result"},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration, ready,
		accessResolutionsTotal, refreshRequestsTotal, refreshUpstreamTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady records the latest readiness probe result.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
	} else {
		ready.Set(0)
	}
}

// ObserveAccessResolution counts a resolver outcome (allowed, forbidden,
// not_synced, error).
func ObserveAccessResolution(outcome string) {
	accessResolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRefreshRequest counts a coalescer decision (queued, scheduled, running).
func ObserveRefreshRequest(status string) {
	refreshRequestsTotal.WithLabelValues(status).Inc()
}

// ObserveUpstreamRefresh counts an upstream refresh call (ok, error).
func ObserveUpstreamRefresh(result string) {
	refreshUpstreamTotal.WithLabelValues(result).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric labels stay bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 5 && parts[1] == "v1" && parts[2] == "reports" && parts[4] == "pages":
		return "/v1/reports/:id/pages"
	case len(parts) == 7 && parts[1] == "v1" && parts[2] == "workspaces" && parts[4] == "datasets" && parts[6] == "refreshes":
		return "/v1/workspaces/:id/datasets/:id/refreshes"
	}
	return path
}

// statusWriter captures the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE responses working through the instrumentation wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Package metrics holds the Prometheus collectors for the push dispatch
// service and the HTTP instrumentation around them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DispatchRequests counts engine runs by outcome
	// (sent, no_tokens, registry_error).
	DispatchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_dispatch_requests_total",
		Help: "Total dispatch requests handled by the engine.",
	}, []string{"outcome"})

	// DispatchResults counts per-destination outcomes by error kind ("ok" on success).
	DispatchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_dispatch_results_total",
		Help: "Per-destination send results.",
	}, []string{"kind"})

	// TokensPruned counts registrations deleted after a dead-token report.
	TokensPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_registry_pruned_total",
		Help: "Device registrations pruned after the provider reported them dead.",
	})

	// PruneFailures counts deletions that failed and were skipped.
	PruneFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_registry_prune_failures_total",
		Help: "Device registration deletions that failed.",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "push_http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})
)

// Middleware records request duration by route pattern, method and status.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpDuration.WithLabelValues(path, r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

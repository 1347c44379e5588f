// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fermentlog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fermentlog_auth_attempts_total",
			Help: "Total sign-in attempts by method and outcome",
		},
		[]string{"method", "success"},
	)
	writeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fermentlog_write_failures_total",
			Help: "Failed collection writes by collection",
		},
		[]string{"collection"},
	)
	activeWatches = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fermentlog_active_watches",
			Help: "Open watch streams by collection",
		},
		[]string{"collection"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAuthAttempt counts a sign-in attempt. method is "password" or a
// provider name.
func RecordAuthAttempt(method string, success bool) {
	authAttempts.WithLabelValues(method, strconv.FormatBool(success)).Inc()
}

// RecordWriteFailure counts a failed write to a collection.
func RecordWriteFailure(collection string) {
	writeFailures.WithLabelValues(collection).Inc()
}

// WatchStarted marks a watch stream as open and returns the func that marks
// it closed.
func WatchStarted(collection string) func() {
	g := activeWatches.WithLabelValues(collection)
	g.Inc()
	return g.Dec
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer (SSE
// handlers need Flush).
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware records request duration labelled by the matched route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		// ServeMux fills in Pattern on the request it routes.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}

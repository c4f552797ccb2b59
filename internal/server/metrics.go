// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes the instrumentation middleware used per endpoint.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// chatSessionsActive is the number of websocket chat sessions currently
	// open.
	chatSessionsActive prometheus.Gauge

	// chatTurnsTotal counts completed chat turns, partitioned by outcome:
	// "ok", "error", or "fatal".
	chatTurnsTotal *prometheus.CounterVec

	// ingestDocumentsTotal counts documents accepted by the upload
	// endpoints, partitioned by source: "sentences", "text", or "csv".
	ingestDocumentsTotal *prometheus.CounterVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) registers into the provided
// registry rather than the global default, which keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adotb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adotb",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),

		chatSessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "adotb",
			Subsystem: "chat",
			Name:      "sessions_active",
			Help:      "Number of websocket chat sessions currently open.",
		}),

		chatTurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adotb",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total number of completed chat turns, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestDocumentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adotb",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of documents accepted by the upload endpoints, partitioned by source format.",
		}, []string{"source"}),
	}
}

// instrument wraps next with request counting and latency observation for
// the named endpoint.
func (m *serverMetrics) instrument(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)

		m.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
	})
}

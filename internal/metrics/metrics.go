// Package metrics provides Prometheus instrumentation for the call engine.
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
	// EvaluationsTotal counts hit-state evaluations, partitioned by mode
	// (last_price or day_range).
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callpulse_evaluations_total",
		Help: "Total number of hit-state evaluations",
	}, []string{"mode"})

	// TargetHitsTotal counts target levels newly marked hit.
	TargetHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callpulse_target_hits_total",
		Help: "Target levels newly marked as hit",
	}, []string{"level"})

	// StopLossHitsTotal counts calls newly stopped out.
	StopLossHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callpulse_stop_loss_hits_total",
		Help: "Calls newly marked stop-loss hit",
	})

	// QuoteFailuresTotal counts skipped calls per poll cycle, partitioned
	// by reason (fetch, invalid_range, suspect).
	QuoteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callpulse_quote_failures_total",
		Help: "Quotes rejected or unavailable during polling",
	}, []string{"reason"})

	// RepairsTotal counts calls fixed by the consistency repair pass.
	RepairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callpulse_repairs_total",
		Help: "Calls repaired by the consistency pass",
	})

	// ExpiriesTotal counts swing calls aged out by the expiry pass.
	ExpiriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callpulse_expiries_total",
		Help: "Swing calls marked expired",
	})

	// PollCycleDuration tracks how long a full poll cycle takes.
	PollCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "callpulse_poll_cycle_duration_seconds",
		Help:    "Duration of a full poll cycle in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// OpenCalls tracks the number of calls still being polled.
	OpenCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callpulse_open_calls",
		Help: "Number of calls currently eligible for polling",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callpulse_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callpulse_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callpulse_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

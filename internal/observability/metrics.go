package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application. The domain
// counters satisfy the ledger and reconciliation metrics ports.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	entriesPosted    prometheus.Counter
	entriesVoided    prometheus.Counter
	reconsCompleted  prometheus.Counter
	autoMatchBatches prometheus.Counter
}

// NewMetrics initializes the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	entriesPosted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_ledger_entries_posted_total",
		Help: "Balanced entry sets posted to the ledger.",
	})
	entriesVoided := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_ledger_entries_voided_total",
		Help: "Entry sets voided via reversal.",
	})
	reconsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_reconciliations_completed_total",
		Help: "Bank reconciliations completed.",
	})
	autoMatchBatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_automatch_batches_total",
		Help: "Auto-match batches processed by the worker.",
	})
	registry.MustRegister(requests, duration, entriesPosted, entriesVoided, reconsCompleted, autoMatchBatches)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		entriesPosted:    entriesPosted,
		entriesVoided:    entriesVoided,
		reconsCompleted:  reconsCompleted,
		autoMatchBatches: autoMatchBatches,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for registering custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// EntryPosted increments the posted-entry counter.
func (m *Metrics) EntryPosted() {
	if m != nil {
		m.entriesPosted.Inc()
	}
}

// EntryVoided increments the voided-entry counter.
func (m *Metrics) EntryVoided() {
	if m != nil {
		m.entriesVoided.Inc()
	}
}

// ReconciliationCompleted increments the completed-reconciliation counter.
func (m *Metrics) ReconciliationCompleted() {
	if m != nil {
		m.reconsCompleted.Inc()
	}
}

// AutoMatchBatch increments the auto-match batch counter.
func (m *Metrics) AutoMatchBatch() {
	if m != nil {
		m.autoMatchBatches.Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

// Package metrics defines the Prometheus collectors for indexing, search,
// and the HTTP API, and exposes a scrape handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docsearch"

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	WindowCacheHits     prometheus.Counter
	WindowCacheMisses   prometheus.Counter
	BuildsTotal         *prometheus.CounterVec
	BuildDuration       prometheus.Histogram
	DocsIndexed         prometheus.Gauge
	ExtractionFailures  prometheus.Counter
	IndexTerms          prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry
// together with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_queries_total",
				Help:      "Total search queries by outcome (ok, empty, syntax_error, invalid, no_index, consistency_error, error).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_latency_seconds",
				Help:      "Search latency in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results_count",
				Help:      "Number of matching documents per search.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
			},
		),
		WindowCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "window_cache_hits_total",
				Help:      "Searches served from a cached result window.",
			},
		),
		WindowCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "window_cache_misses_total",
				Help:      "Searches that had to evaluate the query.",
			},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_builds_total",
				Help:      "Index builds by status.",
			},
			[]string{"status"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_build_duration_seconds",
				Help:      "Wall time of successful index builds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		DocsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "documents_indexed",
				Help:      "Documents in the active generation.",
			},
		),
		ExtractionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_failures_total",
				Help:      "Files that could not be extracted.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_terms",
				Help:      "Distinct (field, term) pairs in the active generation.",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.WindowCacheHits,
		m.WindowCacheMisses,
		m.BuildsTotal,
		m.BuildDuration,
		m.DocsIndexed,
		m.ExtractionFailures,
		m.IndexTerms,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(outcome string, cached bool, total int, d time.Duration) {
	if m == nil {
		return
	}
	status := "miss"
	if cached {
		status = "hit"
		m.WindowCacheHits.Inc()
	} else {
		m.WindowCacheMisses.Inc()
	}
	m.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	m.SearchLatency.WithLabelValues(status).Observe(d.Seconds())
	m.SearchResultsCount.Observe(float64(total))
}

// ObserveSearchError records a search that returned an error.
func (m *Metrics) ObserveSearchError(outcome string) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveBuild records a finished build.
func (m *Metrics) ObserveBuild(err error, docs, terms, failures int, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionFailures.Add(float64(failures))
	if err != nil {
		m.BuildsTotal.WithLabelValues("error").Inc()
		return
	}
	m.BuildsTotal.WithLabelValues("ok").Inc()
	m.BuildDuration.Observe(d.Seconds())
	m.DocsIndexed.Set(float64(docs))
	m.IndexTerms.Set(float64(terms))
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, http.StatusText(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

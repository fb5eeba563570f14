// Package metrics defines the Prometheus collectors for the enrichment
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, so components can be built without instrumentation.
type Metrics struct {
	registry prometheus.Gatherer

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SourceRequests      *prometheus.CounterVec
	SourceLatency       *prometheus.HistogramVec
	CacheRequests       *prometheus.CounterVec
	EnrichmentsTotal    *prometheus.CounterVec
	QualityScore        prometheus.Histogram
	QueueItemsTotal     *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lexicon",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lexicon",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		SourceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lexicon",
				Name:      "source_requests_total",
				Help:      "Source adapter fetches by source and outcome (ok, absent, error).",
			},
			[]string{"source", "outcome"},
		),
		SourceLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lexicon",
				Name:      "source_latency_seconds",
				Help:      "Source adapter fetch latency in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"source"},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lexicon",
				Name:      "cache_requests_total",
				Help:      "Read cache lookups by keyspace and result (hit, miss).",
			},
			[]string{"keyspace", "result"},
		),
		EnrichmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lexicon",
				Name:      "enrichments_total",
				Help:      "Enrichment runs by result (success, no_data, error).",
			},
			[]string{"result"},
		),
		QualityScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "lexicon",
				Name:      "quality_score",
				Help:      "Overall quality score of assessed profiles.",
				Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 75, 80, 90, 100},
			},
		),
		QueueItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lexicon",
				Name:      "queue_items_total",
				Help:      "Processed queue items by outcome (completed, retried, failed).",
			},
			[]string{"outcome"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "lexicon",
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state per host (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SourceRequests,
		m.SourceLatency,
		m.CacheRequests,
		m.EnrichmentsTotal,
		m.QualityScore,
		m.QueueItemsTotal,
		m.CircuitBreakerState,
	)
	return m
}

// Handler returns the Prometheus scrape HTTP handler for m's registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSource records one adapter fetch.
func (m *Metrics) ObserveSource(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SourceRequests.WithLabelValues(source, outcome).Inc()
	m.SourceLatency.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(keyspace string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(keyspace, result).Inc()
}

// ObserveEnrichment records an enrichment run and, on success, the new score.
func (m *Metrics) ObserveEnrichment(result string, score int) {
	if m == nil {
		return
	}
	m.EnrichmentsTotal.WithLabelValues(result).Inc()
	if result == "success" {
		m.QualityScore.Observe(float64(score))
	}
}

// ObserveQueueItem records the outcome of one processed queue item.
func (m *Metrics) ObserveQueueItem(outcome string) {
	if m == nil {
		return
	}
	m.QueueItemsTotal.WithLabelValues(outcome).Inc()
}

// SetBreakerState records a circuit breaker state (0 closed, 1 open, 2 half-open).
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

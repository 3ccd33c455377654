// Package observability exposes prometheus metrics for upstream API calls
// and in-process caches.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors shared across source clients and caches.
// A nil *Metrics is valid; every method is a no-op on it, so wiring metrics
// stays optional in tests and one-shot CLI runs.
type Metrics struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
}

// NewMetrics creates a metrics set backed by its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hunterleaf_upstream_requests_total",
			Help: "Upstream API requests by source and outcome.",
		}, []string{"source", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hunterleaf_upstream_request_duration_seconds",
			Help:    "Upstream API request duration by source.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hunterleaf_cache_hits_total",
			Help: "Cache hits by cache name.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hunterleaf_cache_misses_total",
			Help: "Cache misses by cache name.",
		}, []string{"cache"}),
	}

	registry.MustRegister(m.upstreamRequests, m.upstreamDuration, m.cacheHits, m.cacheMisses)
	return m
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordUpstream records one upstream request with its outcome and duration.
func (m *Metrics) RecordUpstream(source, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(source, outcome).Inc()
	m.upstreamDuration.WithLabelValues(source).Observe(seconds)
}

// RecordCacheHit records a hit on the named cache.
func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a miss on the named cache.
func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

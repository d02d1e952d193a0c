// Package telemetry exposes Prometheus metrics for the aggregation
// pipeline. Collectors are process-wide; recording never influences
// control flow.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roadwatch_source_fetch_total",
		Help: "Source fetch attempts by source and outcome (ok, transient, permanent).",
	}, []string{"source", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roadwatch_source_fetch_duration_seconds",
		Help:    "Source fetch duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	dedupCollapsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roadwatch_records_deduplicated_total",
		Help: "Records collapsed into a surviving duplicate across sources.",
	})

	tokenCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roadwatch_token_cache_total",
		Help: "Token cache lookups by result (hit, miss).",
	}, []string{"result"})

	tokenRefresh = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roadwatch_token_refresh_total",
		Help: "OAuth2 token exchanges performed.",
	})
)

// RecordFetch records one source fetch attempt.
func RecordFetch(source, outcome string, elapsed time.Duration) {
	fetchTotal.WithLabelValues(source, outcome).Inc()
	fetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// RecordDedup records n collapsed duplicates.
func RecordDedup(n int) {
	if n > 0 {
		dedupCollapsed.Add(float64(n))
	}
}

// RecordTokenCache records one token cache lookup.
func RecordTokenCache(hit bool) {
	if hit {
		tokenCache.WithLabelValues("hit").Inc()
		return
	}
	tokenCache.WithLabelValues("miss").Inc()
}

// RecordTokenRefresh records one completed token exchange.
func RecordTokenRefresh() { tokenRefresh.Inc() }

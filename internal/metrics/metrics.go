// Package metrics provides prometheus collectors for the rating core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuoteDuration observes wall-clock quote computation time in seconds
	QuoteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rating",
		Name:      "quote_duration_seconds",
		Help:      "Wall-clock time to compute one quote.",
		Buckets:   []float64{0.001, 0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500},
	})

	// QuotesTotal counts completed quotes by outcome (finalized, rejected, error)
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rating",
		Name:      "quotes_total",
		Help:      "Completed quote calculations by outcome.",
	}, []string{"outcome"})

	// LatencyViolations counts quotes exceeding the configured latency threshold
	LatencyViolations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rating",
		Name:      "latency_violations_total",
		Help:      "Quotes that exceeded the latency threshold.",
	})

	// CacheHits counts cache hits per category
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rating",
		Name:      "cache_hits_total",
		Help:      "Cache hits by category.",
	}, []string{"category"})

	// CacheMisses counts cache misses per category (timeouts and backend errors included)
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rating",
		Name:      "cache_misses_total",
		Help:      "Cache misses by category.",
	}, []string{"category"})
)

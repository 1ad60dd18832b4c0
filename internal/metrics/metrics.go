package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsProcessed tracks items completed per operation
	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_items_processed_total",
			Help: "Total number of items enriched",
		},
		[]string{"operation"},
	)

	// ItemsFailed tracks terminal failures per operation
	ItemsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_items_failed_total",
			Help: "Total number of items that failed after retries",
		},
		[]string{"operation"},
	)

	// CacheHits tracks cache hits per operation
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"operation"},
	)

	// CacheMisses tracks cache misses per operation
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"operation"},
	)

	// RetryAttempts tracks retry attempts per operation
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"operation"},
	)

	// ComputeLatency tracks the latency of the retry-wrapped compute step
	ComputeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrich_compute_latency_seconds",
			Help:    "Compute (fetch/inference) latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// CheckpointSize tracks how many items the checkpoint covers
	CheckpointSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "enrich_checkpoint_items",
			Help: "Number of item IDs recorded in the checkpoint",
		},
		[]string{"operation"},
	)
)

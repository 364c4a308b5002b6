package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	DecodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bindkey_decode_seconds",
		Help:    "Time spent decoding a single key.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	BindingsInterned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bindkey_bindings_interned_total",
		Help: "Total number of bindings allocated in session arenas.",
	}, []string{"kind"})

	RecoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bindkey_recovered_total",
		Help: "Total number of references degraded to recovered bindings.",
	}, []string{"reason"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bindkey_batch_seconds",
		Help:    "Time spent resolving one batch of keys and source handles.",
		Buckets: prometheus.DefBuckets,
	})

	BatchCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bindkey_batch_cancelled_total",
		Help: "Total number of batches stopped by cancellation.",
	})

	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bindkey_parsing_seconds",
		Help:    "Time spent parsing a Java source file.",
		Buckets: prometheus.DefBuckets,
	})

	IndexedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bindkey_index_files",
		Help: "Number of source files in the project index.",
	})

	IndexedTypes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bindkey_index_types",
		Help: "Number of type declarations in the project index.",
	})

	LookupCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bindkey_lookup_cache_hits_total",
		Help: "Total number of index lookups served from the cache.",
	})

	LookupCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bindkey_lookup_cache_misses_total",
		Help: "Total number of index lookups that reached the store.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bindkey_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)

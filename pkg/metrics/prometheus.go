package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	QuotesServed    prometheus.Counter
	ProviderCalls   *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	Revalidations   prometheus.Counter
	QuoteDuration   prometheus.Histogram
	CatalogSyncRuns *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		QuotesServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_served_total",
			Help:      "The total number of quote aggregations served",
		}),
		ProviderCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Provider quote calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_hits_total",
			Help:      "The total number of quote cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_misses_total",
			Help:      "The total number of quote cache misses",
		}),
		Revalidations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_revalidations_total",
			Help:      "The total number of background cache revalidations",
		}),
		QuoteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_request_duration_seconds",
			Help:      "Time taken to serve one quote aggregation",
			Buckets:   prometheus.DefBuckets,
		}),
		CatalogSyncRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_sync_runs_total",
			Help:      "Catalog sync runs by outcome",
		}, []string{"outcome"}),
	}
}

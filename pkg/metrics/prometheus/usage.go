package prometheus

import (
	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// usageMetrics is the Prometheus implementation of metrics.UsageMetrics.
type usageMetrics struct {
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	usageBytes  prometheus.Histogram
}

// NewUsageMetrics creates a new Prometheus-backed UsageMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled.
func NewUsageMetrics() metrics.UsageMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopUsageMetrics()
	}
	return newUsageMetrics(metrics.GetRegistry())
}

func newUsageMetrics(reg prometheus.Registerer) *usageMetrics {
	return &usageMetrics{
		cacheHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dittodrive_usage_cache_hits_total",
			Help: "Total number of usage lookups served from cache",
		}),
		cacheMisses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dittodrive_usage_cache_misses_total",
			Help: "Total number of usage lookups computed from the metadata store",
		}),
		usageBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "dittodrive_usage_bytes",
			Help:    "Distribution of computed per-owner storage usage in bytes",
			Buckets: prometheus.ExponentialBuckets(1<<20, 4, 10), // 1MiB .. 256GiB
		}),
	}
}

func (m *usageMetrics) RecordCacheHit() {
	m.cacheHits.Inc()
}

func (m *usageMetrics) RecordCacheMiss() {
	m.cacheMisses.Inc()
}

func (m *usageMetrics) ObserveUsage(bytes int64) {
	m.usageBytes.Observe(float64(bytes))
}

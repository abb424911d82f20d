package metrics

// UsageMetrics provides observability for storage accounting.
type UsageMetrics interface {
	// RecordCacheHit records a usage lookup served from cache.
	RecordCacheHit()

	// RecordCacheMiss records a usage lookup computed from the metadata store.
	RecordCacheMiss()

	// ObserveUsage records the computed usage of an owner in bytes.
	ObserveUsage(bytes int64)
}

// NewNoopUsageMetrics returns a UsageMetrics that discards everything.
func NewNoopUsageMetrics() UsageMetrics {
	return noopUsageMetrics{}
}

type noopUsageMetrics struct{}

func (noopUsageMetrics) RecordCacheHit()    {}
func (noopUsageMetrics) RecordCacheMiss()   {}
func (noopUsageMetrics) ObserveUsage(int64) {}

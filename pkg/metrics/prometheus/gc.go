package prometheus

import (
	"time"

	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// gcMetrics is the Prometheus implementation of metrics.GCMetrics.
type gcMetrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	blobsScanned   prometheus.Counter
	orphansFound   prometheus.Counter
	orphansDeleted prometheus.Counter
}

// NewGCMetrics creates a new Prometheus-backed GCMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled.
func NewGCMetrics() metrics.GCMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopGCMetrics()
	}
	return newGCMetrics(metrics.GetRegistry())
}

func newGCMetrics(reg prometheus.Registerer) *gcMetrics {
	return &gcMetrics{
		runsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dittodrive_gc_runs_total",
			Help: "Total number of garbage collection runs by status",
		}, []string{"status"}),
		runDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "dittodrive_gc_run_duration_seconds",
			Help:    "Duration of garbage collection runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 3, 10),
		}),
		blobsScanned: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dittodrive_gc_blobs_scanned_total",
			Help: "Total number of blobs listed by garbage collection",
		}),
		orphansFound: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dittodrive_gc_orphans_found_total",
			Help: "Total number of blobs found without a referencing record",
		}),
		orphansDeleted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dittodrive_gc_orphans_deleted_total",
			Help: "Total number of orphan blobs deleted",
		}),
	}
}

func (m *gcMetrics) RecordRun(duration time.Duration, scanned, orphans, deleted int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.blobsScanned.Add(float64(scanned))
	m.orphansFound.Add(float64(orphans))
	m.orphansDeleted.Add(float64(deleted))
}

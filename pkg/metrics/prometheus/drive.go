package prometheus

import (
	"time"

	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// driveMetrics is the Prometheus implementation of metrics.DriveMetrics.
type driveMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	blobOpsTotal      *prometheus.CounterVec
	blobOpDuration    *prometheus.HistogramVec
	uploadBytes       *prometheus.HistogramVec
}

// NewDriveMetrics creates a new Prometheus-backed DriveMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewDriveMetrics() metrics.DriveMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopDriveMetrics()
	}
	return newDriveMetrics(metrics.GetRegistry())
}

func newDriveMetrics(reg prometheus.Registerer) *driveMetrics {
	return &driveMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodrive_operations_total",
				Help: "Total number of drive operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodrive_operation_duration_seconds",
				Help: "Duration of drive operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1,     // 1s
					5,     // 5s
					30,    // 30s
				},
			},
			[]string{"operation"},
		),
		blobOpsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodrive_blob_operations_total",
				Help: "Total number of blob backend calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		blobOpDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittodrive_blob_operation_duration_seconds",
				Help:    "Duration of blob backend calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2.5, 9), // 5ms .. ~7.6s
			},
			[]string{"operation"},
		),
		uploadBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittodrive_upload_size_bytes",
				Help:    "Size of stored uploads in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB .. 256MiB
			},
			[]string{"kind"},
		),
	}
}

func (m *driveMetrics) RecordOperation(operation string, duration time.Duration, outcome string) {
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *driveMetrics) RecordBlobOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.blobOpsTotal.WithLabelValues(operation, status).Inc()
	m.blobOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUploadBytes labels by top-level type ("image", "application") to
// keep cardinality bounded.
func (m *driveMetrics) RecordUploadBytes(mimeType string, bytes int64) {
	m.uploadBytes.WithLabelValues(mimeKind(mimeType)).Observe(float64(bytes))
}

func mimeKind(mimeType string) string {
	for i := 0; i < len(mimeType); i++ {
		if mimeType[i] == '/' {
			return mimeType[:i]
		}
	}
	return "unknown"
}

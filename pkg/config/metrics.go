package config

import (
	"github.com/marmos91/dittodrive/pkg/metrics"
	promMetrics "github.com/marmos91/dittodrive/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Drive, Usage, GC and API are never nil; they are no-ops when disabled
	Drive metrics.DriveMetrics
	Usage metrics.UsageMetrics
	GC    metrics.GCMetrics
	API   metrics.APIMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Drive: metrics.NewNoopDriveMetrics(),
			Usage: metrics.NewNoopUsageMetrics(),
			GC:    metrics.NewNoopGCMetrics(),
			API:   metrics.NewNoopAPIMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		Drive:  promMetrics.NewDriveMetrics(),
		Usage:  promMetrics.NewUsageMetrics(),
		GC:     promMetrics.NewGCMetrics(),
		API:    promMetrics.NewAPIMetrics(),
	}
}

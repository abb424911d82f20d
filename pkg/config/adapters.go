package config

import (
	"github.com/marmos91/dittodrive/pkg/adapter"
	"github.com/marmos91/dittodrive/pkg/api"
	"github.com/marmos91/dittodrive/pkg/metrics"
)

// CreateAdapters creates the protocol adapters from the configuration.
//
// The HTTP API is the only adapter today; new transports are added here.
func CreateAdapters(cfg *Config, apiMetrics metrics.APIMetrics) []adapter.Adapter {
	return []adapter.Adapter{
		api.New(cfg.API, apiMetrics),
	}
}

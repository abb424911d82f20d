package adapter

import (
	"context"
	"errors"

	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/marmos91/dittodrive/pkg/usage"
)

// Services bundles the backends shared by every adapter of a server.
type Services struct {
	// Drive executes file and folder operations.
	Drive *drive.Service

	// Usage computes storage consumption.
	Usage *usage.Accountant

	// Metadata is exposed for health checks only; adapters must go
	// through Drive for anything else.
	Metadata metadata.Store
}

// Validate reports a missing required service.
func (s *Services) Validate() error {
	if s == nil {
		return errors.New("services cannot be nil")
	}
	if s.Drive == nil {
		return errors.New("drive service is required")
	}
	if s.Usage == nil {
		return errors.New("usage accountant is required")
	}
	if s.Metadata == nil {
		return errors.New("metadata store is required")
	}
	return nil
}

// Adapter is a network frontend (HTTP API, future protocols) managed by
// the server.
//
// Lifecycle:
//  1. Creation with adapter-specific configuration
//  2. SetServices() injects the shared backends, once, before Serve()
//  3. Serve() blocks until ctx is cancelled or the listener fails
//  4. Stop() initiates graceful shutdown, possibly concurrently with Serve()
//
// Thread safety:
// Stop() must be idempotent and safe to call concurrently with Serve().
type Adapter interface {
	// Serve starts the adapter and blocks until ctx is cancelled or an
	// unrecoverable error occurs. Returning before cancellation is treated
	// as fatal and stops every other adapter.
	Serve(ctx context.Context) error

	// SetServices injects the shared backends.
	SetServices(services *Services)

	// Stop initiates graceful shutdown within the ctx deadline.
	Stop(ctx context.Context) error

	// Protocol returns the adapter name for logging, e.g. "HTTP".
	Protocol() string

	// Port returns the listening port, or the configured one before Serve.
	Port() int
}

// Package api exposes the drive over HTTP/JSON.
//
// Every /api route requires an HS256 bearer token; its sub claim is the
// owner all operations are scoped to. Replies use the envelope
// {"success", "message", "data"} and service error kinds map onto status
// codes (unauthorized 401, invalid input 400, not found 404, conflict 409,
// backend unavailable 503, anything else 500).
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/adapter"
	"github.com/marmos91/dittodrive/pkg/metrics"
)

// HTTPAdapter serves the API as an adapter.Adapter.
type HTTPAdapter struct {
	config  Config
	metrics metrics.APIMetrics

	mu       sync.Mutex
	server   *http.Server
	port     int
	stopOnce sync.Once
}

// New creates an HTTP adapter. Defaults are applied to config.
func New(config Config, m metrics.APIMetrics) *HTTPAdapter {
	config.ApplyDefaults()
	if m == nil {
		m = metrics.NewNoopAPIMetrics()
	}
	return &HTTPAdapter{config: config, metrics: m, port: config.Port}
}

// SetServices builds the router over the shared services.
func (a *HTTPAdapter) SetServices(services *adapter.Services) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.server = &http.Server{
		Handler:      NewRouter(services, a.config, a.metrics),
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		IdleTimeout:  2 * a.config.ReadTimeout,
	}
}

// Serve listens and serves until ctx is cancelled or the listener fails.
func (a *HTTPAdapter) Serve(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.mu.Unlock()
	if server == nil {
		return errors.New("http adapter: SetServices must be called before Serve")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("http adapter: listen: %w", err)
	}

	a.mu.Lock()
	a.port = ln.Addr().(*net.TCPAddr).Port
	a.mu.Unlock()
	logger.Info("HTTP API listening on port %d", a.Port())

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		// ctx is already cancelled; shutdown needs its own deadline.
		stopCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err, ok := <-errChan:
		if !ok {
			// Stopped through Stop().
			return context.Canceled
		}
		return fmt.Errorf("http adapter: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (a *HTTPAdapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.mu.Unlock()
	if server == nil {
		return nil
	}

	var err error
	a.stopOnce.Do(func() {
		if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("http adapter shutdown: %w", shutdownErr)
			return
		}
		logger.Info("HTTP API stopped")
	})
	return err
}

// Protocol implements adapter.Adapter.
func (a *HTTPAdapter) Protocol() string {
	return "HTTP"
}

// Port returns the listening port once serving, the configured one before.
func (a *HTTPAdapter) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port
}

var _ adapter.Adapter = (*HTTPAdapter)(nil)

package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/adapter"
)

// Worker is a background component whose lifecycle follows the server,
// such as the garbage collector.
type Worker interface {
	Start()
	Stop(ctx context.Context) error
}

// Server manages the lifecycle of the adapters and background workers
// that share one set of services.
//
// Lifecycle:
//  1. Creation: New() with the shared services
//  2. Registration: AddAdapter() and AddWorker()
//  3. Startup: Serve() starts workers, then all adapters concurrently
//  4. Shutdown: ctx cancellation or an adapter failure stops adapters in
//     reverse registration order, then workers
//
// Thread safety:
// Safe for concurrent use. Serve() may only be called once.
type Server struct {
	services *adapter.Services

	mu       sync.RWMutex
	adapters []adapter.Adapter
	workers  []Worker
	served   bool

	// stopTimeout bounds each shutdown phase.
	stopTimeout time.Duration
}

// New creates a server. It panics if services are incomplete, which is a
// wiring bug.
func New(services *adapter.Services, stopTimeout time.Duration) *Server {
	if err := services.Validate(); err != nil {
		panic(err.Error())
	}
	if stopTimeout <= 0 {
		stopTimeout = 30 * time.Second
	}

	return &Server{
		services:    services,
		adapters:    make([]adapter.Adapter, 0, 2),
		stopTimeout: stopTimeout,
	}
}

// AddAdapter injects the shared services into a and registers it.
//
// Duplicate protocols and ports are rejected. Panics when called after
// Serve().
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol, port := a.Protocol(), a.Port()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetServices(s.services)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// AddWorker registers a background worker started by Serve().
func (s *Server) AddWorker(w Worker) {
	if w == nil {
		panic("worker cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add worker after Serve() has been called")
	}
	s.workers = append(s.workers, w)
}

// Serve starts everything and blocks until ctx is cancelled or an adapter
// fails.
//
// Returns ctx.Err() after a cancellation-triggered shutdown, or the
// failing adapter's error wrapped with its protocol name.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("server already served")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := append([]adapter.Adapter(nil), s.adapters...)
	workers := append([]Worker(nil), s.workers...)
	s.mu.Unlock()

	for _, w := range workers {
		w.Start()
	}

	logger.Info("Starting server with %d adapter(s)", len(adapters))

	// Buffered so failing adapters never block after shutdown began.
	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(ctx)
			switch {
			case err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			case ctx.Err() == nil:
				// Returning early without an error is still a failure.
				errChan <- adapterError{protocol: protocol, err: errors.New("adapter exited unexpectedly")}
			default:
				logger.Debug("%s adapter stopped", protocol)
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - shutting down", adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	s.stopAdapters(adapters)
	wg.Wait()
	s.stopWorkers(workers)

	logger.Info("Server stopped")
	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAdapters signals every adapter in reverse registration order.
func (s *Server) stopAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		}
	}
}

func (s *Server) stopWorkers(workers []Worker) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	for i := len(workers) - 1; i >= 0; i-- {
		if err := workers[i].Stop(ctx); err != nil {
			logger.Warn("Error stopping background worker: %v", err)
		}
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]adapter.Adapter(nil), s.adapters...)
}

// Package gc removes orphaned blobs: stored objects that no file record
// references any more.
//
// Orphans appear when an upload's record insert fails and the compensating
// delete fails too, or when the process dies between the two halves of an
// upload. The collector lists the blob backend, subtracts every storage id
// the metadata store still references and deletes the rest, skipping
// objects younger than a grace period so uploads in flight are never
// touched.
package gc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/blob"
	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/marmos91/dittodrive/pkg/metrics"
)

// ListableStore is a blob store the collector can enumerate.
type ListableStore interface {
	blob.Store
	blob.Lister
}

// Collector performs periodic orphan sweeps.
//
// Thread Safety: Safe for concurrent use. Runs are serialized; a RunNow
// issued while the background sweep is active waits for it.
type Collector struct {
	metadataStore metadata.Store
	blobs         ListableStore
	config        Config
	metrics       metrics.GCMetrics

	runMu     sync.Mutex
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stopCh    chan struct{}
	doneCh    chan struct{}

	// now returns the current time; replaced in tests.
	now func() time.Time
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether the background sweep runs. RunNow works
	// regardless.
	Enabled bool

	// Interval between background sweeps (default: 24h)
	Interval time.Duration

	// GracePeriod protects recently written blobs (default: 1h)
	GracePeriod time.Duration

	// Prefix restricts the sweep to keys under it, e.g. "storex/".
	Prefix string

	// DryRun logs what would be deleted without deleting
	DryRun bool

	// RunTimeout bounds a background sweep (default: 10m)
	RunTimeout time.Duration
}

// NewCollector creates a collector. It fails if blobs cannot be listed.
func NewCollector(metadataStore metadata.Store, blobs blob.Store, config Config, m metrics.GCMetrics) (*Collector, error) {
	listable, ok := blobs.(ListableStore)
	if !ok {
		return nil, errors.New("blob store does not support listing, garbage collection unavailable")
	}

	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = time.Hour
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 10 * time.Minute
	}
	config.Prefix = strings.TrimPrefix(config.Prefix, "/")
	if m == nil {
		m = metrics.NewNoopGCMetrics()
	}

	return &Collector{
		metadataStore: metadataStore,
		blobs:         listable,
		config:        config,
		metrics:       m,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		now:           time.Now,
	}, nil
}

// Start launches the background sweep. Calls after the first are no-ops,
// as is Start on a disabled collector.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	c.startOnce.Do(func() {
		logger.Info("Starting garbage collector: interval=%s grace=%s prefix=%q dry_run=%v",
			c.config.Interval, c.config.GracePeriod, c.config.Prefix, c.config.DryRun)
		c.runMu.Lock()
		c.started = true
		c.runMu.Unlock()
		go c.worker()
	})
}

// Stop signals the background sweep and waits for it to exit or for ctx
// to expire. Safe to call multiple times and before Start.
func (c *Collector) Stop(ctx context.Context) error {
	c.runMu.Lock()
	started := c.started
	c.runMu.Unlock()
	if !started {
		return nil
	}

	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs one sweep and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.RunTimeout)
			// Abort an in-progress sweep on Stop.
			go func() {
				select {
				case <-c.stopCh:
					cancel()
				case <-ctx.Done():
				}
			}()
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single sweep:
//  1. list blobs under the prefix
//  2. load the storage ids referenced by metadata
//  3. orphans = listed - referenced, minus anything inside the grace period
//  4. delete orphans one by one, continuing past failures
//
// Blobs are listed before references are loaded, so a blob whose record
// is inserted mid-sweep is always seen as referenced.
func (c *Collector) collect(ctx context.Context) (stats *Stats, err error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	stats = &Stats{StartTime: c.now()}
	defer func() {
		stats.EndTime = c.now()
		c.metrics.RecordRun(stats.Duration(), stats.ExistingCount, stats.OrphanedCount, stats.DeletedCount, err)
	}()

	existing, err := c.blobs.List(ctx, c.config.Prefix)
	if err != nil {
		return stats, fmt.Errorf("failed to list blobs: %w", err)
	}
	stats.ExistingCount = len(existing)

	referenced, err := c.metadataStore.ListBlobStorageIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list referenced blobs: %w", err)
	}
	stats.ReferencedCount = len(referenced)

	referencedSet := make(map[string]struct{}, len(referenced))
	for _, id := range referenced {
		referencedSet[id] = struct{}{}
	}

	cutoff := stats.StartTime.Add(-c.config.GracePeriod)
	var orphaned []blob.ObjectInfo
	for _, obj := range existing {
		if _, ok := referencedSet[obj.StorageID]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			stats.SkippedCount++
			continue
		}
		orphaned = append(orphaned, obj)
	}
	stats.OrphanedCount = len(orphaned)

	if len(orphaned) == 0 {
		logger.Debug("GC: no orphaned blobs (existing=%d referenced=%d)", stats.ExistingCount, stats.ReferencedCount)
		return stats, nil
	}

	if c.config.DryRun {
		logger.Info("GC: DRY RUN - would delete %d blobs:", len(orphaned))
		for i, obj := range orphaned {
			if i == 10 {
				logger.Info("  ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("  - %s (%s)", obj.StorageID, humanize.IBytes(uint64(max(obj.Size, 0))))
		}
		return stats, nil
	}

	for _, obj := range orphaned {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := c.blobs.Delete(ctx, obj.StorageID); err != nil {
			logger.Debug("GC: failed to delete %s: %v", obj.StorageID, err)
			stats.FailedCount++
			continue
		}
		stats.DeletedCount++
		stats.ReclaimedBytes += obj.Size
	}

	logger.Info("GC: deleted %d orphaned blobs (%s), %d failed",
		stats.DeletedCount, humanize.IBytes(uint64(max(stats.ReclaimedBytes, 0))), stats.FailedCount)
	return stats, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time
	EndTime         time.Time
	ExistingCount   int   // blobs listed under the prefix
	ReferencedCount int   // storage ids referenced by metadata
	SkippedCount    int   // unreferenced but inside the grace period
	OrphanedCount   int   // unreferenced and past the grace period
	DeletedCount    int   // orphans deleted
	FailedCount     int   // orphans whose delete failed
	ReclaimedBytes  int64 // total size of deleted orphans
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("existing=%d referenced=%d skipped=%d orphaned=%d deleted=%d failed=%d reclaimed=%s duration=%s",
		s.ExistingCount, s.ReferencedCount, s.SkippedCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, humanize.IBytes(uint64(max(s.ReclaimedBytes, 0))), s.Duration())
}

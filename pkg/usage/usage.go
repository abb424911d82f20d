// Package usage computes per-owner storage consumption against the quota.
//
// Totals are derived from the metadata store: the sum of Size over every
// file of the owner, trashed files included since their blobs still
// occupy storage. An optional Cache keeps recent totals; the drive service
// invalidates an owner's entry through RecordChanged whenever stored data
// changes.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/marmos91/dittodrive/pkg/metrics"
)

// DefaultQuota is the per-owner quota used when none is configured: 15 GiB.
const DefaultQuota int64 = 15 * 1024 * 1024 * 1024

// ErrOwnerRequired is returned when no owner id is supplied.
var ErrOwnerRequired = errors.New("owner id is required")

// Usage is the storage consumption of one owner.
type Usage struct {
	// Used is the number of bytes stored.
	Used int64 `json:"used"`

	// Total is the quota in bytes.
	Total int64 `json:"total"`

	// Percentage is Used/Total*100, capped at 100.
	Percentage float64 `json:"percentage"`
}

// String renders the usage for logs, e.g. "1.0 KiB of 15 GiB (0.00%)".
func (u Usage) String() string {
	return fmt.Sprintf("%s of %s (%.2f%%)", humanize.IBytes(uint64(max(u.Used, 0))), humanize.IBytes(uint64(max(u.Total, 0))), u.Percentage)
}

func newUsage(used, total int64) *Usage {
	pct := float64(used) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return &Usage{Used: used, Total: total, Percentage: pct}
}

// Config configures an Accountant.
type Config struct {
	// Quota is the per-owner quota in bytes. Zero or negative selects DefaultQuota.
	Quota int64
}

// Accountant computes storage usage.
//
// Thread Safety:
// Safe for concurrent use as long as the configured Cache is.
type Accountant struct {
	store   metadata.Store
	quota   int64
	cache   Cache
	metrics metrics.UsageMetrics
}

// Option customizes an Accountant.
type Option func(*Accountant)

// WithCache enables caching of computed totals.
func WithCache(cache Cache) Option {
	return func(a *Accountant) {
		if cache != nil {
			a.cache = cache
		}
	}
}

// WithMetrics enables cache and usage metrics.
func WithMetrics(m metrics.UsageMetrics) Option {
	return func(a *Accountant) {
		if m != nil {
			a.metrics = m
		}
	}
}

// NewAccountant creates an Accountant reading from store.
func NewAccountant(store metadata.Store, config Config, opts ...Option) *Accountant {
	quota := config.Quota
	if quota <= 0 {
		quota = DefaultQuota
	}

	a := &Accountant{
		store:   store,
		quota:   quota,
		cache:   NewNoopCache(),
		metrics: metrics.NewNoopUsageMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Quota returns the effective per-owner quota in bytes.
func (a *Accountant) Quota() int64 {
	return a.quota
}

// ComputeUsage returns the storage consumption of ownerID.
//
// Cache failures are logged and fall through to the metadata store; only
// store failures are returned.
func (a *Accountant) ComputeUsage(ctx context.Context, ownerID string) (*Usage, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	used, gen, ok, err := a.cache.Get(ctx, ownerID)
	if err != nil {
		logger.Warn("Usage cache read failed for owner=%s: %v", ownerID, err)
	}
	if ok {
		a.metrics.RecordCacheHit()
		return newUsage(used, a.quota), nil
	}
	a.metrics.RecordCacheMiss()

	start := time.Now()
	used, err = a.sum(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("compute usage for %s: %w", ownerID, err)
	}
	logger.Debug("Usage computed for owner=%s in %s: %s", ownerID, time.Since(start), humanize.IBytes(uint64(used)))

	if err := a.cache.Set(ctx, ownerID, used, gen); err != nil {
		logger.Warn("Usage cache write failed for owner=%s: %v", ownerID, err)
	}
	a.metrics.ObserveUsage(used)

	return newUsage(used, a.quota), nil
}

func (a *Accountant) sum(ctx context.Context, ownerID string) (int64, error) {
	records, err := a.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	var used int64
	for _, rec := range records {
		if !rec.IsFolder {
			used += rec.Size
		}
	}
	return used, nil
}

// RecordChanged drops the cached total of ownerID. It satisfies the
// drive service's change observer.
func (a *Accountant) RecordChanged(ctx context.Context, ownerID string) {
	if err := a.cache.Invalidate(ctx, ownerID); err != nil {
		logger.Warn("Usage cache invalidation failed for owner=%s: %v", ownerID, err)
	}
}

// Close releases the cache.
func (a *Accountant) Close() error {
	return a.cache.Close()
}

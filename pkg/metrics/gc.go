package metrics

import "time"

// GCMetrics provides observability for the orphan blob sweep.
type GCMetrics interface {
	// RecordRun records a completed collection run.
	//
	// Parameters:
	//   - duration: Time taken by the run
	//   - scanned: Number of blobs listed
	//   - orphans: Number of blobs referenced by no record
	//   - deleted: Number of orphans deleted (0 in dry-run mode)
	//   - err: Error that aborted the run, if any
	RecordRun(duration time.Duration, scanned, orphans, deleted int, err error)
}

// NewNoopGCMetrics returns a GCMetrics that discards everything.
func NewNoopGCMetrics() GCMetrics {
	return noopGCMetrics{}
}

type noopGCMetrics struct{}

func (noopGCMetrics) RecordRun(time.Duration, int, int, int, error) {}

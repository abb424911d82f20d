package metrics

import "time"

// DriveMetrics provides observability for drive service operations.
//
// This interface is optional - if not provided to the service, operations
// proceed without metrics collection.
type DriveMetrics interface {
	// RecordOperation records a completed service operation.
	//
	// Parameters:
	//   - operation: Operation name (e.g., "upload", "delete", "toggle_trash")
	//   - duration: Time taken to complete the operation
	//   - outcome: "success" or the error kind (e.g., "not_found")
	RecordOperation(operation string, duration time.Duration, outcome string)

	// RecordBlobOperation records a call into the blob backend.
	//
	// Parameters:
	//   - operation: Blob operation ("put", "delete", "open")
	//   - duration: Time taken
	//   - err: Error if failed
	RecordBlobOperation(operation string, duration time.Duration, err error)

	// RecordUploadBytes records the size of a stored upload.
	RecordUploadBytes(mimeType string, bytes int64)
}

// NewNoopDriveMetrics returns a DriveMetrics that discards everything.
func NewNoopDriveMetrics() DriveMetrics {
	return noopDriveMetrics{}
}

type noopDriveMetrics struct{}

func (noopDriveMetrics) RecordOperation(string, time.Duration, string)   {}
func (noopDriveMetrics) RecordBlobOperation(string, time.Duration, error) {}
func (noopDriveMetrics) RecordUploadBytes(string, int64)                  {}

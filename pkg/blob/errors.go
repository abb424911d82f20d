package blob

import "errors"

// Standard blob store errors.
//
// Implementations wrap these with context, callers test with errors.Is:
//
//	if errors.Is(err, blob.ErrBackendUnavailable) {
//	    // nothing was stored, safe to report and abort
//	}
var (
	// ErrBackendUnavailable indicates the object store could not complete
	// the operation (network failure, service error, disk failure).
	ErrBackendUnavailable = errors.New("blob backend unavailable")

	// ErrNotFound indicates the requested blob does not exist.
	// Only returned by reads; Delete of a missing blob succeeds.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey indicates dir/name do not form a usable object key,
	// for example an empty name or a path escaping the store root.
	ErrInvalidKey = errors.New("invalid blob key")
)

package blob

import (
	"context"
	"io"
	"time"
)

// Store wraps an external object store holding the raw bytes of uploads.
//
// Store is deliberately narrow: the drive service only ever puts a whole
// buffer and deletes by handle. Metadata lives in metadata.Store; the blob
// store knows nothing about owners, folders or trash.
//
// Storage IDs:
// The StorageID returned by Put is an opaque handle. Callers persist it and
// hand it back to Delete; only the backend interprets it.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Put stores data under dir/name.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - data: The complete file contents
	//   - dir: Destination directory (e.g. "/storex/u1/folder/<id>")
	//   - name: Stored object name (e.g. "<uuid>.pdf")
	//   - contentType: MIME type, also decides whether a thumbnail URL is produced
	//
	// Returns:
	//   - *PutResult: Retrieval URL, optional thumbnail URL and the deletion handle
	//   - error: ErrBackendUnavailable on transport or service failures,
	//     ErrInvalidKey if dir/name do not form a valid object key
	Put(ctx context.Context, data []byte, dir, name, contentType string) (*PutResult, error)

	// Delete removes the blob identified by storageID.
	//
	// Deleting a blob that does not exist succeeds, so a retried delete
	// never blocks metadata cleanup.
	//
	// Returns ErrBackendUnavailable on transport or service failures.
	Delete(ctx context.Context, storageID string) error
}

// PutResult describes a stored blob.
type PutResult struct {
	// StorageID is the handle needed to delete the blob later
	StorageID string

	// Path is the object path inside the store, with a leading "/"
	Path string

	// URL is where the blob bytes can be retrieved
	URL string

	// ThumbnailURL is a preview URL, set only for image content types
	ThumbnailURL string
}

// Reader is implemented by stores that can stream a blob back.
type Reader interface {
	// Open returns a reader for the blob. Returns ErrNotFound if absent.
	// The caller must close the returned reader.
	Open(ctx context.Context, storageID string) (io.ReadCloser, error)
}

// ObjectInfo describes a stored blob, as reported by List.
type ObjectInfo struct {
	StorageID    string
	Size         int64
	LastModified time.Time
}

// Lister is implemented by stores that can enumerate their blobs.
// Garbage collection needs it to find blobs no record references.
type Lister interface {
	// List returns every blob whose storage ID starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

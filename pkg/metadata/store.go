package metadata

import "context"

// Store is the persisted tree of file/folder records.
//
// All lookups are scoped by owner. A record owned by somebody else is
// reported exactly like a missing one (ErrNotFound) so that existence never
// leaks across owners.
//
// Implementations must enforce, on Insert:
//   - a non-empty ParentID references an existing folder with the same owner
//   - folders carry no blob data
//
// Since records can only be created under pre-existing parents and are never
// reparented, the parent relation stays acyclic by construction.
//
// Update and Delete are atomic with respect to concurrent mutations of the
// same record. Concurrent writers resolve last-write-wins.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Insert stores a new record.
	//
	// Returns:
	//   - ErrAlreadyExists if a record with the same ID exists
	//   - ErrInvalidArgument if the record fails validation
	//   - ErrParentNotFound if ParentID is not an owned folder
	Insert(ctx context.Context, rec *FileRecord) error

	// GetByIDForOwner returns the record with the given id, only if it is
	// owned by ownerID. Returns ErrNotFound otherwise.
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*FileRecord, error)

	// ListChildren returns every record of ownerID whose parent is parentID.
	// An empty parentID lists root-level records. Records are returned in
	// insertion order where the backend can preserve it.
	ListChildren(ctx context.Context, ownerID, parentID string) ([]*FileRecord, error)

	// ListByOwner returns every record owned by ownerID, in no particular order.
	ListByOwner(ctx context.Context, ownerID string) ([]*FileRecord, error)

	// Update applies patch to the record matching (id, ownerID), refreshes
	// UpdatedAt and returns the updated record.
	Update(ctx context.Context, id, ownerID string, patch *Patch) (*FileRecord, error)

	// Delete removes the record matching (id, ownerID) and returns it.
	//
	// Returns ErrNotEmpty for a folder that still has children. The check
	// and the removal happen atomically.
	Delete(ctx context.Context, id, ownerID string) (*FileRecord, error)

	// ListBlobStorageIDs returns the blob handle of every record, across
	// all owners. Used by the orphan blob sweep.
	ListBlobStorageIDs(ctx context.Context) ([]string, error)

	// Healthcheck verifies the backend is operational.
	Healthcheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/dittodrive/pkg/metadata"
)

// MemoryMetadataStore implements metadata.Store using in-memory storage.
//
// Suitable for tests, development and ephemeral deployments where records
// do not need to survive a restart.
//
// Thread Safety:
// All operations are protected by a single read-write mutex (mu). Update and
// Delete hold the write lock for their whole read-modify-write sequence,
// which gives per-record atomicity.
//
// Storage Model:
//
//  1. Records (files):
//     Arena map from record id to record. Records reference their parent by
//     id, never by pointer, so removing a node cannot leave a dangling
//     reference inside the store.
//
//  2. Children index (children):
//     Maps childKey(owner, parent) to the ids of the children in insertion
//     order. Root-level records use an empty parent.
type MemoryMetadataStore struct {
	mu sync.RWMutex

	files    map[string]*metadata.FileRecord
	children map[string][]string

	// now returns the current time; replaced in tests.
	now func() time.Time
}

// NewMemoryMetadataStore creates an empty in-memory metadata store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		files:    make(map[string]*metadata.FileRecord),
		children: make(map[string][]string),
		now:      time.Now,
	}
}

// childKey builds the children index key for (owner, parent).
func childKey(ownerID, parentID string) string {
	return ownerID + "\x00" + parentID
}

// Insert implements metadata.Store.
func (s *MemoryMetadataStore) Insert(ctx context.Context, rec *metadata.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil {
		return metadata.NewInvalidArgumentError("record is nil", "")
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[rec.ID]; exists {
		return metadata.NewAlreadyExistsError(rec.ID)
	}

	if rec.ParentID != "" {
		parent, ok := s.files[rec.ParentID]
		if !ok || parent.OwnerID != rec.OwnerID || !parent.IsFolder {
			return metadata.NewParentNotFoundError(rec.ParentID)
		}
	}

	stored := rec.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	s.files[stored.ID] = stored
	key := childKey(stored.OwnerID, stored.ParentID)
	s.children[key] = append(s.children[key], stored.ID)

	return nil
}

// GetByIDForOwner implements metadata.Store.
func (s *MemoryMetadataStore) GetByIDForOwner(ctx context.Context, id, ownerID string) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.lookup(id, ownerID)
	if !ok {
		return nil, metadata.NewNotFoundError(id)
	}
	return rec.Clone(), nil
}

// lookup returns the stored record for (id, owner). Caller holds mu.
func (s *MemoryMetadataStore) lookup(id, ownerID string) (*metadata.FileRecord, bool) {
	rec, ok := s.files[id]
	if !ok || rec.OwnerID != ownerID {
		return nil, false
	}
	return rec, true
}

// ListChildren implements metadata.Store.
func (s *MemoryMetadataStore) ListChildren(ctx context.Context, ownerID, parentID string) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.children[childKey(ownerID, parentID)]
	result := make([]*metadata.FileRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.files[id]; ok {
			result = append(result, rec.Clone())
		}
	}
	return result, nil
}

// ListByOwner implements metadata.Store.
func (s *MemoryMetadataStore) ListByOwner(ctx context.Context, ownerID string) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*metadata.FileRecord
	for _, rec := range s.files {
		if rec.OwnerID == ownerID {
			result = append(result, rec.Clone())
		}
	}
	return result, nil
}

// Update implements metadata.Store.
func (s *MemoryMetadataStore) Update(ctx context.Context, id, ownerID string, patch *metadata.Patch) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookup(id, ownerID)
	if !ok {
		return nil, metadata.NewNotFoundError(id)
	}

	// Apply on a copy so a rejected patch leaves the stored record untouched.
	updated := rec.Clone()
	if err := patch.Apply(updated, s.now()); err != nil {
		return nil, err
	}
	s.files[id] = updated

	return updated.Clone(), nil
}

// Delete implements metadata.Store.
func (s *MemoryMetadataStore) Delete(ctx context.Context, id, ownerID string) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookup(id, ownerID)
	if !ok {
		return nil, metadata.NewNotFoundError(id)
	}

	if rec.IsFolder && len(s.children[childKey(ownerID, id)]) > 0 {
		return nil, metadata.NewNotEmptyError(id)
	}

	delete(s.files, id)
	delete(s.children, childKey(ownerID, id))

	key := childKey(rec.OwnerID, rec.ParentID)
	siblings := s.children[key]
	for i, childID := range siblings {
		if childID == id {
			s.children[key] = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	if len(s.children[key]) == 0 {
		delete(s.children, key)
	}

	return rec.Clone(), nil
}

// ListBlobStorageIDs implements metadata.Store.
func (s *MemoryMetadataStore) ListBlobStorageIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, rec := range s.files {
		if rec.HasBlob() {
			ids = append(ids, rec.BlobStorageID)
		}
	}
	return ids, nil
}

// Healthcheck implements metadata.Store. The memory store is always healthy.
func (s *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Close implements metadata.Store.
func (s *MemoryMetadataStore) Close() error {
	return nil
}

var _ metadata.Store = (*MemoryMetadataStore)(nil)

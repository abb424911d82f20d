package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittodrive/pkg/blob"
)

// MemoryBlobStore implements blob.Store in memory.
//
// Intended for tests and ephemeral deployments. Data is lost on restart.
//
// Thread Safety:
// All operations are protected by a read-write mutex.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string]object
	urls    blob.URLBuilder

	// now returns the current time; replaced in tests.
	now func() time.Time
}

type object struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore(urls blob.URLBuilder) *MemoryBlobStore {
	return &MemoryBlobStore{
		objects: make(map[string]object),
		urls:    urls,
		now:     time.Now,
	}
}

// Put implements blob.Store.
func (s *MemoryBlobStore) Put(ctx context.Context, data []byte, dir, name, contentType string) (*blob.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := blob.ObjectKey(dir, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = object{
		data:         bytes.Clone(data),
		contentType:  contentType,
		lastModified: s.now(),
	}

	return s.urls.Result(key, contentType), nil
}

// Delete implements blob.Store.
func (s *MemoryBlobStore) Delete(ctx context.Context, storageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, storageID)
	return nil
}

// Open implements blob.Reader.
func (s *MemoryBlobStore) Open(ctx context.Context, storageID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[storageID]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", storageID, blob.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// List implements blob.Lister.
func (s *MemoryBlobStore) List(ctx context.Context, prefix string) ([]blob.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []blob.ObjectInfo
	for key, obj := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		infos = append(infos, blob.ObjectInfo{
			StorageID:    key,
			Size:         int64(len(obj.data)),
			LastModified: obj.lastModified,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].StorageID < infos[j].StorageID })
	return infos, nil
}

// Len returns the number of stored blobs.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

var (
	_ blob.Store  = (*MemoryBlobStore)(nil)
	_ blob.Reader = (*MemoryBlobStore)(nil)
	_ blob.Lister = (*MemoryBlobStore)(nil)
)

package drive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittodrive/pkg/blob"
	blobmemory "github.com/marmos91/dittodrive/pkg/blob/memory"
	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/marmos91/dittodrive/pkg/metadata/memory"
	"github.com/stretchr/testify/require"
)

var testURLs = blob.URLBuilder{BaseURL: "https://cdn.test", ThumbnailQuery: "tr=w-300,h-300"}

// recordingBlobs wraps the memory blob store, counting calls and
// optionally failing them.
type recordingBlobs struct {
	*blobmemory.MemoryBlobStore

	mu        sync.Mutex
	puts      int
	deletes   []string
	putErr    error
	deleteErr error
}

func newRecordingBlobs() *recordingBlobs {
	return &recordingBlobs{MemoryBlobStore: blobmemory.NewMemoryBlobStore(testURLs)}
}

func (r *recordingBlobs) Put(ctx context.Context, data []byte, dir, name, contentType string) (*blob.PutResult, error) {
	r.mu.Lock()
	r.puts++
	err := r.putErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.MemoryBlobStore.Put(ctx, data, dir, name, contentType)
}

func (r *recordingBlobs) Delete(ctx context.Context, storageID string) error {
	r.mu.Lock()
	r.deletes = append(r.deletes, storageID)
	err := r.deleteErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryBlobStore.Delete(ctx, storageID)
}

func (r *recordingBlobs) putCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.puts
}

func (r *recordingBlobs) deleteCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deletes...)
}

// failingStore wraps the memory metadata store and fails selected calls.
type failingStore struct {
	*memory.MemoryMetadataStore

	insertErr error
	deleteErr error

	// updateErr fails Update for updateErrID, or for every id when empty.
	updateErr   error
	updateErrID string
}

func (f *failingStore) Insert(ctx context.Context, rec *metadata.FileRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.MemoryMetadataStore.Insert(ctx, rec)
}

func (f *failingStore) Update(ctx context.Context, id, ownerID string, patch *metadata.Patch) (*metadata.FileRecord, error) {
	if f.updateErr != nil && (f.updateErrID == "" || f.updateErrID == id) {
		return nil, f.updateErr
	}
	return f.MemoryMetadataStore.Update(ctx, id, ownerID, patch)
}

func (f *failingStore) Delete(ctx context.Context, id, ownerID string) (*metadata.FileRecord, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return f.MemoryMetadataStore.Delete(ctx, id, ownerID)
}

// changeRecorder counts observer notifications per owner.
type changeRecorder struct {
	mu      sync.Mutex
	changes map[string]int
}

func (c *changeRecorder) RecordChanged(_ context.Context, ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.changes == nil {
		c.changes = make(map[string]int)
	}
	c.changes[ownerID]++
}

func (c *changeRecorder) count(ownerID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changes[ownerID]
}

type fixture struct {
	svc      *Service
	store    *failingStore
	blobs    *recordingBlobs
	observer *changeRecorder
}

// newFixture builds a service with deterministic ids and a clock that
// advances one second per call.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := &failingStore{MemoryMetadataStore: memory.NewMemoryMetadataStore()}
	blobs := newRecordingBlobs()
	observer := &changeRecorder{}

	svc := NewService(store, blobs, DefaultConfig(), WithObserver(observer))

	var mu sync.Mutex
	seq := 0
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	tick := 0
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	t.Cleanup(func() { _ = store.Close() })
	return &fixture{svc: svc, store: store, blobs: blobs, observer: observer}
}

func (f *fixture) folder(t *testing.T, owner, name, parent string) *metadata.FileRecord {
	t.Helper()
	rec, err := f.svc.CreateFolder(context.Background(), owner, name, parent)
	require.NoError(t, err)
	return rec
}

func (f *fixture) file(t *testing.T, owner, name, parent string, size int) *metadata.FileRecord {
	t.Helper()
	rec, err := f.svc.UploadFile(context.Background(), owner, make([]byte, size), name, "application/pdf", parent)
	require.NoError(t, err)
	return rec
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, IsKind(err, kind), "expected kind %s, got %s (%v)", kind, KindOf(err), err)
}

var errBoom = errors.New("boom")

func names(records []*metadata.FileRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

package usage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/dittodrive/pkg/blob"
	blobmemory "github.com/marmos91/dittodrive/pkg/blob/memory"
	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/marmos91/dittodrive/pkg/metadata/memory"
	"github.com/marmos91/dittodrive/pkg/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store      *memory.MemoryMetadataStore
	accountant *usage.Accountant
	svc        *drive.Service
}

func newFixture(t *testing.T, cache usage.Cache) *fixture {
	t.Helper()

	store := memory.NewMemoryMetadataStore()
	var opts []usage.Option
	if cache != nil {
		opts = append(opts, usage.WithCache(cache))
	}
	accountant := usage.NewAccountant(store, usage.Config{}, opts...)
	svc := drive.NewService(store, blobmemory.NewMemoryBlobStore(blob.URLBuilder{}), drive.DefaultConfig(),
		drive.WithObserver(accountant))

	t.Cleanup(func() {
		_ = accountant.Close()
		_ = store.Close()
	})
	return &fixture{store: store, accountant: accountant, svc: svc}
}

func (f *fixture) upload(t *testing.T, owner, parent string, size int) *metadata.FileRecord {
	t.Helper()
	rec, err := f.svc.UploadFile(context.Background(), owner, make([]byte, size), "f.pdf", "application/pdf", parent)
	require.NoError(t, err)
	return rec
}

func TestComputeUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("SumsFileSizes", func(t *testing.T) {
		f := newFixture(t, nil)
		for _, size := range []int{100, 200, 300} {
			f.upload(t, "u1", "", size)
		}

		got, err := f.accountant.ComputeUsage(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(600), got.Used)
		assert.Equal(t, usage.DefaultQuota, got.Total)
		assert.InDelta(t, 600.0/float64(usage.DefaultQuota)*100, got.Percentage, 1e-12)
	})

	t.Run("IgnoresFoldersCountsTrashAndNesting", func(t *testing.T) {
		f := newFixture(t, nil)
		docs, err := f.svc.CreateFolder(ctx, "u1", "Docs", "")
		require.NoError(t, err)
		f.upload(t, "u1", docs.ID, 50)
		trashed := f.upload(t, "u1", "", 25)
		_, err = f.svc.ToggleTrash(ctx, "u1", trashed.ID)
		require.NoError(t, err)
		f.upload(t, "u2", "", 1000)

		got, err := f.accountant.ComputeUsage(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(75), got.Used)
	})

	t.Run("UnknownOwnerIsZero", func(t *testing.T) {
		f := newFixture(t, nil)
		got, err := f.accountant.ComputeUsage(ctx, "nobody")
		require.NoError(t, err)
		assert.Zero(t, got.Used)
		assert.Zero(t, got.Percentage)
	})

	t.Run("PercentageIsCapped", func(t *testing.T) {
		store := memory.NewMemoryMetadataStore()
		defer store.Close()
		accountant := usage.NewAccountant(store, usage.Config{Quota: 100})
		svc := drive.NewService(store, blobmemory.NewMemoryBlobStore(blob.URLBuilder{}), drive.DefaultConfig())

		_, err := svc.UploadFile(ctx, "u1", make([]byte, 250), "big.pdf", "application/pdf", "")
		require.NoError(t, err)

		got, err := accountant.ComputeUsage(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(250), got.Used)
		assert.Equal(t, int64(100), got.Total)
		assert.Equal(t, 100.0, got.Percentage)
	})

	t.Run("OwnerRequired", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.accountant.ComputeUsage(ctx, "")
		assert.ErrorIs(t, err, usage.ErrOwnerRequired)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		store := memory.NewMemoryMetadataStore()
		accountant := usage.NewAccountant(store, usage.Config{})

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := accountant.ComputeUsage(cancelled, "u1")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// The end-to-end flow: folder, upload, trash, delete, with usage tracked
// through the cache-invalidating observer.
func TestUsageScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, usage.NewMemoryCache(time.Hour))

	docs, err := f.svc.CreateFolder(ctx, "u1", "Docs", "")
	require.NoError(t, err)

	file, err := f.svc.UploadFile(ctx, "u1", make([]byte, 1024), "a.pdf", "application/pdf", docs.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), file.Size)

	got, err := f.accountant.ComputeUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), got.Used)

	trashed, err := f.svc.ToggleTrash(ctx, "u1", file.ID)
	require.NoError(t, err)
	assert.True(t, trashed.IsTrashed)

	_, err = f.svc.DeleteFile(ctx, "u1", file.ID)
	require.NoError(t, err)

	got, err = f.accountant.ComputeUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Used, "delete invalidates the cached total")
}

// changingStore runs during once, right after ListByOwner has read the
// records, to land a change between the read and the cache write.
type changingStore struct {
	*memory.MemoryMetadataStore
	during func()
}

func (s *changingStore) ListByOwner(ctx context.Context, ownerID string) ([]*metadata.FileRecord, error) {
	records, err := s.MemoryMetadataStore.ListByOwner(ctx, ownerID)
	if during := s.during; during != nil {
		s.during = nil
		during()
	}
	return records, err
}

func TestChangeDuringComputeIsNotCached(t *testing.T) {
	ctx := context.Background()

	store := memory.NewMemoryMetadataStore()
	defer store.Close()
	changing := &changingStore{MemoryMetadataStore: store}
	accountant := usage.NewAccountant(changing, usage.Config{}, usage.WithCache(usage.NewMemoryCache(time.Hour)))
	svc := drive.NewService(store, blobmemory.NewMemoryBlobStore(blob.URLBuilder{}), drive.DefaultConfig(),
		drive.WithObserver(accountant))

	changing.during = func() {
		_, err := svc.UploadFile(ctx, "u1", make([]byte, 1024), "a.pdf", "application/pdf", "")
		require.NoError(t, err)
	}

	got, err := accountant.ComputeUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Used, "computed from the records read before the upload")

	got, err = accountant.ComputeUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), got.Used, "the pre-upload total was not cached")
}

// flakyCache fails every call.
type flakyCache struct{}

func (flakyCache) Get(context.Context, string) (int64, uint64, bool, error) {
	return 0, 0, false, errors.New("down")
}
func (flakyCache) Set(context.Context, string, int64, uint64) error { return errors.New("down") }
func (flakyCache) Invalidate(context.Context, string) error         { return errors.New("down") }
func (flakyCache) Close() error                                     { return nil }

func TestCacheFailuresFallThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flakyCache{})
	f.upload(t, "u1", "", 10)

	got, err := f.accountant.ComputeUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Used)
}

func TestUsageString(t *testing.T) {
	u := usage.Usage{Used: 1024, Total: usage.DefaultQuota, Percentage: 0}
	assert.Equal(t, "1.0 KiB of 15 GiB (0.00%)", u.String())
}

package drive

import (
	"context"
	"io"
	"testing"

	"github.com/marmos91/dittodrive/pkg/blob"
	"github.com/marmos91/dittodrive/pkg/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreadcrumbs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.folder(t, "u1", "A", "")
	b := f.folder(t, "u1", "B", a.ID)
	file := f.file(t, "u1", "c.pdf", b.ID, 10)

	chain, err := f.svc.Breadcrumbs(ctx, "u1", file.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "c.pdf"}, names(chain))

	root, err := f.svc.Breadcrumbs(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(root))

	_, err = f.svc.Breadcrumbs(ctx, "u2", file.ID)
	requireKind(t, err, KindNotFound)
}

func TestStarredAndTrashedViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.file(t, "u1", "a.pdf", "", 10)
	b := f.file(t, "u1", "b.pdf", "", 10)
	c := f.file(t, "u1", "c.pdf", "", 10)
	f.file(t, "u2", "d.pdf", "", 10)

	for _, id := range []string{a.ID, b.ID} {
		_, err := f.svc.ToggleStar(ctx, "u1", id)
		require.NoError(t, err)
	}
	for _, id := range []string{b.ID, c.ID} {
		_, err := f.svc.ToggleTrash(ctx, "u1", id)
		require.NoError(t, err)
	}

	starred, err := f.svc.ListStarred(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, names(starred), "trashed records leave the starred view")

	trashed, err := f.svc.ListTrashed(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.pdf", "c.pdf"}, names(trashed))

	none, err := f.svc.ListStarred(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("File", func(t *testing.T) {
		f := newFixture(t)
		rec, err := f.svc.UploadFile(ctx, "u1", []byte("%PDF-1.7"), "a.pdf", "application/pdf", "")
		require.NoError(t, err)

		body, got, err := f.svc.Download(ctx, "u1", rec.ID)
		require.NoError(t, err)
		defer body.Close()

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.7", string(data))
		assert.Equal(t, rec.ID, got.ID)
	})

	t.Run("Folder", func(t *testing.T) {
		f := newFixture(t)
		docs := f.folder(t, "u1", "Docs", "")
		_, _, err := f.svc.Download(ctx, "u1", docs.ID)
		requireKind(t, err, KindInvalidInput)
	})

	t.Run("MissingBlob", func(t *testing.T) {
		f := newFixture(t)
		rec := f.file(t, "u1", "a.pdf", "", 10)
		require.NoError(t, f.blobs.MemoryBlobStore.Delete(ctx, rec.BlobStorageID))

		_, _, err := f.svc.Download(ctx, "u1", rec.ID)
		requireKind(t, err, KindNotFound)
	})

	t.Run("BackendWithoutReader", func(t *testing.T) {
		store := memory.NewMemoryMetadataStore()
		blobs := newRecordingBlobs()
		svc := NewService(store, putDeleteOnly{blobs}, DefaultConfig())

		rec, err := svc.UploadFile(ctx, "u1", []byte("x"), "a.pdf", "application/pdf", "")
		require.NoError(t, err)

		_, _, err = svc.Download(ctx, "u1", rec.ID)
		requireKind(t, err, KindInternal)
	})
}

// putDeleteOnly hides the optional blob capabilities.
type putDeleteOnly struct {
	inner *recordingBlobs
}

func (p putDeleteOnly) Put(ctx context.Context, data []byte, dir, name, contentType string) (*blob.PutResult, error) {
	return p.inner.Put(ctx, data, dir, name, contentType)
}

func (p putDeleteOnly) Delete(ctx context.Context, storageID string) error {
	return p.inner.Delete(ctx, storageID)
}

func TestEmptyTrash(t *testing.T) {
	ctx := context.Background()

	t.Run("DeletesTrashedSubtreeLeafFirst", func(t *testing.T) {
		f := newFixture(t)
		docs := f.folder(t, "u1", "Docs", "")
		sub := f.folder(t, "u1", "Sub", docs.ID)
		f.file(t, "u1", "a.pdf", sub.ID, 10)
		f.file(t, "u1", "b.pdf", docs.ID, 10)
		kept := f.file(t, "u1", "keep.pdf", "", 10)

		_, err := f.svc.ToggleTrash(ctx, "u1", docs.ID)
		require.NoError(t, err)

		report, err := f.svc.EmptyTrash(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, report.Failed)
		assert.ElementsMatch(t, []string{"Docs", "Sub", "a.pdf", "b.pdf"}, names(report.Deleted))
		assert.Equal(t, "Docs", report.Deleted[len(report.Deleted)-1].Name, "root of the subtree goes last")

		remaining, err := f.store.ListByOwner(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, kept.ID, remaining[0].ID)
		assert.Equal(t, 1, f.blobs.Len())
	})

	t.Run("FolderWithLiveChildIsReported", func(t *testing.T) {
		f := newFixture(t)
		docs := f.folder(t, "u1", "Docs", "")
		live := f.file(t, "u1", "live.pdf", docs.ID, 10)

		_, err := f.svc.ToggleTrash(ctx, "u1", docs.ID)
		require.NoError(t, err)
		// Restore the child on its own.
		_, err = f.svc.ToggleTrash(ctx, "u1", live.ID)
		require.NoError(t, err)

		report, err := f.svc.EmptyTrash(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, report.Deleted)
		require.Len(t, report.Failed, 1)
		assert.Equal(t, docs.ID, report.Failed[0].ID)
		assert.Equal(t, KindConflict.String(), report.Failed[0].Kind)
	})

	t.Run("NothingTrashed", func(t *testing.T) {
		f := newFixture(t)
		f.file(t, "u1", "a.pdf", "", 10)

		report, err := f.svc.EmptyTrash(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, report.Deleted)
		assert.Empty(t, report.Failed)
	})
}

func TestDepthOf(t *testing.T) {
	parents := map[string]string{"a": "", "b": "a", "c": "b", "loop1": "loop2", "loop2": "loop1"}

	assert.Equal(t, 0, depthOf("a", parents))
	assert.Equal(t, 2, depthOf("c", parents))
	assert.Equal(t, maxBreadcrumbDepth, depthOf("loop1", parents))
}

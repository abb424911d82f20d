package drive

import (
	"context"
	"testing"

	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolder(t *testing.T) {
	ctx := context.Background()

	t.Run("AtRoot", func(t *testing.T) {
		f := newFixture(t)

		rec, err := f.svc.CreateFolder(ctx, "u1", "  Docs ", "")
		require.NoError(t, err)
		assert.Equal(t, "Docs", rec.Name)
		assert.True(t, rec.IsFolder)
		assert.Equal(t, metadata.FolderMimeType, rec.MimeType)
		assert.Zero(t, rec.Size)
		assert.Empty(t, rec.ParentID)
		assert.Equal(t, "u1", rec.OwnerID)
		assert.Zero(t, f.blobs.putCalls())
	})

	// For all created folders, the parent's listing includes the folder
	// iff the parent matches.
	t.Run("ListedUnderItsParentOnly", func(t *testing.T) {
		f := newFixture(t)

		docs := f.folder(t, "u1", "Docs", "")
		sub := f.folder(t, "u1", "Sub", docs.ID)
		other := f.folder(t, "u1", "Other", "")

		root, err := f.svc.ListChildren(ctx, "u1", "", ListOptions{})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Docs", "Other"}, names(root))

		inDocs, err := f.svc.ListChildren(ctx, "u1", docs.ID, ListOptions{})
		require.NoError(t, err)
		require.Len(t, inDocs, 1)
		assert.Equal(t, sub.ID, inDocs[0].ID)

		inOther, err := f.svc.ListChildren(ctx, "u1", other.ID, ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, inOther)
	})

	t.Run("EmptyName", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateFolder(ctx, "u1", "   ", "")
		requireKind(t, err, KindInvalidInput)
	})

	t.Run("MissingOwner", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateFolder(ctx, "", "Docs", "")
		requireKind(t, err, KindUnauthorized)
	})

	t.Run("MissingParent", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateFolder(ctx, "u1", "Docs", "nope")
		requireKind(t, err, KindParentNotFound)
	})

	t.Run("ParentIsAFile", func(t *testing.T) {
		f := newFixture(t)
		file := f.file(t, "u1", "a.pdf", "", 10)

		_, err := f.svc.CreateFolder(ctx, "u1", "Docs", file.ID)
		requireKind(t, err, KindParentNotFound)
	})

	t.Run("ParentOfAnotherOwner", func(t *testing.T) {
		f := newFixture(t)
		theirs := f.folder(t, "u2", "Theirs", "")

		_, err := f.svc.CreateFolder(ctx, "u1", "Mine", theirs.ID)
		requireKind(t, err, KindParentNotFound)
	})

	t.Run("DuplicateSiblingNamesAllowed", func(t *testing.T) {
		f := newFixture(t)
		a := f.folder(t, "u1", "Docs", "")
		b := f.folder(t, "u1", "Docs", "")
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestUploadFile(t *testing.T) {
	ctx := context.Background()

	t.Run("IntoFolder", func(t *testing.T) {
		f := newFixture(t)
		docs := f.folder(t, "u1", "Docs", "")

		rec, err := f.svc.UploadFile(ctx, "u1", make([]byte, 1024), "Report.PDF", "application/pdf", docs.ID)
		require.NoError(t, err)

		assert.Equal(t, "Report.PDF", rec.Name)
		assert.Equal(t, int64(1024), rec.Size)
		assert.Equal(t, docs.ID, rec.ParentID)
		assert.False(t, rec.IsFolder)
		assert.Equal(t, "/storex/u1/folder/"+docs.ID+"/"+rec.ID+".pdf", rec.Path)
		assert.Equal(t, "storex/u1/folder/"+docs.ID+"/"+rec.ID+".pdf", rec.BlobStorageID)
		assert.Equal(t, "https://cdn.test"+rec.Path, rec.StorageURL)
		assert.Empty(t, rec.ThumbnailURL, "PDFs have no thumbnail")

		stored, err := f.svc.GetFile(ctx, "u1", rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec, stored)
		assert.Equal(t, 1, f.observer.count("u1"))
	})

	t.Run("ImageAtRootGetsThumbnail", func(t *testing.T) {
		f := newFixture(t)

		rec, err := f.svc.UploadFile(ctx, "u1", []byte("png"), "cat.png", "image/png", "")
		require.NoError(t, err)
		assert.Equal(t, "/storex/u1/"+rec.ID+".png", rec.Path)
		assert.Equal(t, rec.StorageURL+"?tr=w-300,h-300", rec.ThumbnailURL)
	})

	t.Run("EmptyFileAllowed", func(t *testing.T) {
		f := newFixture(t)
		rec, err := f.svc.UploadFile(ctx, "u1", []byte{}, "empty.pdf", "application/pdf", "")
		require.NoError(t, err)
		assert.Zero(t, rec.Size)
	})

	// A rejected MIME type produces no record and never reaches the blob store.
	t.Run("UnsupportedMimeType", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.UploadFile(ctx, "u1", []byte("x"), "notes.txt", "text/x-unknown", "")
		requireKind(t, err, KindInvalidInput)

		assert.Zero(t, f.blobs.putCalls())
		all, err := f.store.ListByOwner(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("OwnerIDEscapingRootPrefix", func(t *testing.T) {
		f := newFixture(t)

		for _, owner := range []string{"a/../u2", "../../x"} {
			_, err := f.svc.UploadFile(ctx, owner, []byte("x"), "a.pdf", "application/pdf", "")
			requireKind(t, err, KindInvalidInput)
		}
		assert.Zero(t, f.blobs.putCalls())
	})

	t.Run("NoData", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UploadFile(ctx, "u1", nil, "a.pdf", "application/pdf", "")
		requireKind(t, err, KindInvalidInput)
		assert.Zero(t, f.blobs.putCalls())
	})

	t.Run("EmptyName", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UploadFile(ctx, "u1", []byte("x"), " ", "application/pdf", "")
		requireKind(t, err, KindInvalidInput)
	})

	t.Run("ParentIsAFile", func(t *testing.T) {
		f := newFixture(t)
		file := f.file(t, "u1", "a.pdf", "", 10)

		_, err := f.svc.UploadFile(ctx, "u1", []byte("x"), "b.pdf", "application/pdf", file.ID)
		requireKind(t, err, KindParentNotFound)
		assert.Equal(t, 1, f.blobs.putCalls())
	})

	t.Run("BlobFailureCreatesNoRecord", func(t *testing.T) {
		f := newFixture(t)
		f.blobs.putErr = errBoom

		_, err := f.svc.UploadFile(ctx, "u1", []byte("x"), "a.pdf", "application/pdf", "")
		requireKind(t, err, KindBackendUnavailable)

		all, err := f.store.ListByOwner(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, all)
		assert.Zero(t, f.observer.count("u1"))
	})

	t.Run("InsertFailureRemovesBlob", func(t *testing.T) {
		f := newFixture(t)
		f.store.insertErr = metadata.NewIOError("disk full", errBoom)

		_, err := f.svc.UploadFile(ctx, "u1", []byte("x"), "a.pdf", "application/pdf", "")
		requireKind(t, err, KindInternal)

		deletes := f.blobs.deleteCalls()
		require.Len(t, deletes, 1)
		assert.Equal(t, "storex/u1/id-001.pdf", deletes[0])
		assert.Zero(t, f.blobs.Len())
	})

	t.Run("InsertFailureParentVanished", func(t *testing.T) {
		f := newFixture(t)
		f.store.insertErr = metadata.NewParentNotFoundError("id-404")

		_, err := f.svc.UploadFile(ctx, "u1", []byte("x"), "a.pdf", "application/pdf", "")
		requireKind(t, err, KindParentNotFound)
		assert.Zero(t, f.blobs.Len())
	})
}

func TestUploadFiles(t *testing.T) {
	ctx := context.Background()

	t.Run("PartialSuccess", func(t *testing.T) {
		f := newFixture(t)

		report, err := f.svc.UploadFiles(ctx, "u1", []Upload{
			{Name: "a.pdf", MimeType: "application/pdf", Data: []byte("a")},
			{Name: "b.txt", MimeType: "text/plain", Data: []byte("b")},
			{Name: "c.jpg", MimeType: "image/jpeg", Data: []byte("c")},
		}, "")
		require.NoError(t, err)

		assert.Equal(t, []string{"a.pdf", "c.jpg"}, names(report.Files))
		require.Len(t, report.Failed, 1)
		assert.Equal(t, "b.txt", report.Failed[0].Name)
		assert.Equal(t, "invalid_input", report.Failed[0].Kind)
		assert.Equal(t, "only images and PDF files are supported", report.Failed[0].Message)
	})

	t.Run("NoFiles", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UploadFiles(ctx, "u1", nil, "")
		requireKind(t, err, KindInvalidInput)
	})
}

func TestToggleStar(t *testing.T) {
	ctx := context.Background()

	t.Run("IsAnInvolution", func(t *testing.T) {
		f := newFixture(t)
		file := f.file(t, "u1", "a.pdf", "", 10)

		once, err := f.svc.ToggleStar(ctx, "u1", file.ID)
		require.NoError(t, err)
		assert.True(t, once.IsStarred)
		assert.True(t, once.UpdatedAt.After(file.UpdatedAt))

		twice, err := f.svc.ToggleStar(ctx, "u1", file.ID)
		require.NoError(t, err)
		assert.Equal(t, file.IsStarred, twice.IsStarred)
	})

	t.Run("OtherOwnerSeesNotFound", func(t *testing.T) {
		f := newFixture(t)
		file := f.file(t, "u1", "a.pdf", "", 10)

		_, err := f.svc.ToggleStar(ctx, "u2", file.ID)
		requireKind(t, err, KindNotFound)

		unchanged, err := f.svc.GetFile(ctx, "u1", file.ID)
		require.NoError(t, err)
		assert.False(t, unchanged.IsStarred)
	})

	t.Run("Missing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ToggleStar(ctx, "u1", "nope")
		requireKind(t, err, KindNotFound)
	})
}

func TestToggleTrash(t *testing.T) {
	ctx := context.Background()

	t.Run("IsAnInvolution", func(t *testing.T) {
		f := newFixture(t)
		file := f.file(t, "u1", "a.pdf", "", 10)

		once, err := f.svc.ToggleTrash(ctx, "u1", file.ID)
		require.NoError(t, err)
		assert.True(t, once.IsTrashed)
		assert.Equal(t, file.ParentID, once.ParentID, "trashing never moves a record")

		twice, err := f.svc.ToggleTrash(ctx, "u1", file.ID)
		require.NoError(t, err)
		assert.False(t, twice.IsTrashed)
	})

	t.Run("CascadesToDescendants", func(t *testing.T) {
		f := newFixture(t)
		docs := f.folder(t, "u1", "Docs", "")
		sub := f.folder(t, "u1", "Sub", docs.ID)
		a := f.file(t, "u1", "a.pdf", docs.ID, 10)
		b := f.file(t, "u1", "b.pdf", sub.ID, 10)
		outside := f.file(t, "u1", "c.pdf", "", 10)

		_, err := f.svc.ToggleTrash(ctx, "u1", docs.ID)
		require.NoError(t, err)

		for _, id := range []string{docs.ID, sub.ID, a.ID, b.ID} {
			rec, err := f.svc.GetFile(ctx, "u1", id)
			require.NoError(t, err)
			assert.True(t, rec.IsTrashed, rec.Name)
		}
		rec, err := f.svc.GetFile(ctx, "u1", outside.ID)
		require.NoError(t, err)
		assert.False(t, rec.IsTrashed)

		_, err = f.svc.ToggleTrash(ctx, "u1", docs.ID)
		require.NoError(t, err)
		for _, id := range []string{docs.ID, sub.ID, a.ID, b.ID} {
			rec, err := f.svc.GetFile(ctx, "u1", id)
			require.NoError(t, err)
			assert.False(t, rec.IsTrashed, rec.Name)
		}
	})

	t.Run("FailedCascadeLeavesFolderAndRetryConverges", func(t *testing.T) {
		f := newFixture(t)
		docs := f.folder(t, "u1", "Docs", "")
		a := f.file(t, "u1", "a.pdf", docs.ID, 10)
		b := f.file(t, "u1", "b.pdf", docs.ID, 10)

		f.store.updateErr = errBoom
		f.store.updateErrID = b.ID
		_, err := f.svc.ToggleTrash(ctx, "u1", docs.ID)
		requireKind(t, err, KindInternal)

		rec, err := f.svc.GetFile(ctx, "u1", docs.ID)
		require.NoError(t, err)
		assert.False(t, rec.IsTrashed, "folder is flipped only after its subtree")

		f.store.updateErr = nil
		rec, err = f.svc.ToggleTrash(ctx, "u1", docs.ID)
		require.NoError(t, err)
		assert.True(t, rec.IsTrashed)

		for _, id := range []string{a.ID, b.ID} {
			child, err := f.svc.GetFile(ctx, "u1", id)
			require.NoError(t, err)
			assert.True(t, child.IsTrashed, child.Name)
		}
	})

	t.Run("OtherOwnerSeesNotFound", func(t *testing.T) {
		f := newFixture(t)
		file := f.file(t, "u1", "a.pdf", "", 10)
		_, err := f.svc.ToggleTrash(ctx, "u2", file.ID)
		requireKind(t, err, KindNotFound)
	})
}

func TestDeleteFile(t *testing.T) {
	ctx := context.Background()

	t.Run("RemovesRecordAndBlob", func(t *testing.T) {
		f := newFixture(t)
		file := f.file(t, "u1", "a.pdf", "", 10)
		require.Equal(t, 1, f.blobs.Len())

		deleted, err := f.svc.DeleteFile(ctx, "u1", file.ID)
		require.NoError(t, err)
		assert.Equal(t, file.ID, deleted.ID)

		_, err = f.svc.GetFile(ctx, "u1", file.ID)
		requireKind(t, err, KindNotFound)
		assert.Zero(t, f.blobs.Len())
		assert.Equal(t, 2, f.observer.count("u1"))
	})

	t.Run("EmptyFolderSkipsBlobStore", func(t *testing.T) {
		f := newFixture(t)
		docs := f.folder(t, "u1", "Docs", "")

		_, err := f.svc.DeleteFile(ctx, "u1", docs.ID)
		require.NoError(t, err)
		assert.Empty(t, f.blobs.deleteCalls())
		assert.Zero(t, f.observer.count("u1"))
	})

	t.Run("NonEmptyFolderConflicts", func(t *testing.T) {
		f := newFixture(t)
		docs := f.folder(t, "u1", "Docs", "")
		f.file(t, "u1", "a.pdf", docs.ID, 10)

		_, err := f.svc.DeleteFile(ctx, "u1", docs.ID)
		requireKind(t, err, KindConflict)

		_, err = f.svc.GetFile(ctx, "u1", docs.ID)
		require.NoError(t, err)
	})

	// A failed blob delete leaves the record intact.
	t.Run("BlobFailureKeepsRecord", func(t *testing.T) {
		f := newFixture(t)
		file := f.file(t, "u1", "a.pdf", "", 10)
		f.blobs.deleteErr = errBoom

		_, err := f.svc.DeleteFile(ctx, "u1", file.ID)
		requireKind(t, err, KindBackendUnavailable)

		kept, err := f.svc.GetFile(ctx, "u1", file.ID)
		require.NoError(t, err)
		assert.Equal(t, file, kept)
	})

	t.Run("RecordFailureAfterBlobIsInternal", func(t *testing.T) {
		f := newFixture(t)
		file := f.file(t, "u1", "a.pdf", "", 10)
		f.store.deleteErr = metadata.NewIOError("write failed", errBoom)

		_, err := f.svc.DeleteFile(ctx, "u1", file.ID)
		requireKind(t, err, KindInternal)
		assert.Zero(t, f.blobs.Len())
	})

	t.Run("OtherOwnerSeesNotFound", func(t *testing.T) {
		f := newFixture(t)
		file := f.file(t, "u1", "a.pdf", "", 10)

		_, err := f.svc.DeleteFile(ctx, "u2", file.ID)
		requireKind(t, err, KindNotFound)
		assert.Empty(t, f.blobs.deleteCalls())
	})
}

func TestListChildren(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.file(t, "u1", "Invoice-2024.pdf", "", 10)
	trashed := f.file(t, "u1", "invoice-old.pdf", "", 10)
	f.file(t, "u1", "photo.pdf", "", 10)
	f.file(t, "u2", "invoice-foreign.pdf", "", 10)

	_, err := f.svc.ToggleTrash(ctx, "u1", trashed.ID)
	require.NoError(t, err)

	all, err := f.svc.ListChildren(ctx, "u1", "", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	matching, err := f.svc.ListChildren(ctx, "u1", "", ListOptions{NameContains: "INVOICE"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Invoice-2024.pdf", "invoice-old.pdf"}, names(matching))

	visible, err := f.svc.ListChildren(ctx, "u1", "", ListOptions{NameContains: "invoice", ExcludeTrashed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoice-2024.pdf"}, names(visible))

	_, err = f.svc.ListChildren(ctx, "", "", ListOptions{})
	requireKind(t, err, KindUnauthorized)
}

func TestOwnerIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	docs := f.folder(t, "u1", "Docs", "")
	file := f.file(t, "u1", "a.pdf", docs.ID, 10)

	for _, id := range []string{docs.ID, file.ID} {
		_, err := f.svc.GetFile(ctx, "u2", id)
		requireKind(t, err, KindNotFound)
	}

	listed, err := f.svc.ListChildren(ctx, "u2", docs.ID, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

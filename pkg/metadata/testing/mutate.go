package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunUpdateTests(test *testing.T) {
	test.Run("Flags", suite.TestUpdate_Flags)
	test.Run("Rename", suite.TestUpdate_Rename)
	test.Run("RefreshesUpdatedAt", suite.TestUpdate_RefreshesUpdatedAt)
	test.Run("ForeignOwner", suite.TestUpdate_ForeignOwner)
	test.Run("RejectsEmptyName", suite.TestUpdate_RejectsEmptyName)
	test.Run("Concurrent", suite.TestUpdate_Concurrent)
}

func (suite *StoreTestSuite) RunDeleteTests(test *testing.T) {
	test.Run("File", suite.TestDelete_File)
	test.Run("EmptyFolder", suite.TestDelete_EmptyFolder)
	test.Run("NonEmptyFolder", suite.TestDelete_NonEmptyFolder)
	test.Run("ForeignOwner", suite.TestDelete_ForeignOwner)
	test.Run("Twice", suite.TestDelete_Twice)
}

func (suite *StoreTestSuite) TestUpdate_Flags(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	rec := mustInsert(test, store, NewFileRecord("u1", "a.pdf", "", 10))

	updated, err := store.Update(ctx, rec.ID, "u1", &metadata.Patch{
		IsStarred: metadata.Bool(true),
		IsTrashed: metadata.Bool(true),
	})
	require.NoError(test, err)
	assert.True(test, updated.IsStarred)
	assert.True(test, updated.IsTrashed)
	assert.Equal(test, "a.pdf", updated.Name)

	got, err := store.GetByIDForOwner(ctx, rec.ID, "u1")
	require.NoError(test, err)
	assert.True(test, got.IsStarred)
	assert.True(test, got.IsTrashed)
	assert.Equal(test, rec.ParentID, got.ParentID, "trash must not move the record")
}

func (suite *StoreTestSuite) TestUpdate_Rename(test *testing.T) {
	store := suite.NewStore(test)

	rec := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))

	updated, err := store.Update(context.Background(), rec.ID, "u1", &metadata.Patch{Name: metadata.String("  Papers ")})
	require.NoError(test, err)
	assert.Equal(test, "Papers", updated.Name)
}

func (suite *StoreTestSuite) TestUpdate_RefreshesUpdatedAt(test *testing.T) {
	store := suite.NewStore(test)

	rec := NewFileRecord("u1", "a.pdf", "", 10)
	rec.CreatedAt = time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	rec.UpdatedAt = rec.CreatedAt
	mustInsert(test, store, rec)

	updated, err := store.Update(context.Background(), rec.ID, "u1", &metadata.Patch{IsStarred: metadata.Bool(true)})
	require.NoError(test, err)
	assert.True(test, updated.UpdatedAt.After(rec.UpdatedAt))
}

func (suite *StoreTestSuite) TestUpdate_ForeignOwner(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	rec := mustInsert(test, store, NewFileRecord("u1", "a.pdf", "", 10))

	_, err := store.Update(ctx, rec.ID, "u2", &metadata.Patch{IsTrashed: metadata.Bool(true)})
	requireCode(test, err, metadata.ErrNotFound)

	got, err := store.GetByIDForOwner(ctx, rec.ID, "u1")
	require.NoError(test, err)
	assert.False(test, got.IsTrashed)
}

func (suite *StoreTestSuite) TestUpdate_RejectsEmptyName(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	rec := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))

	_, err := store.Update(ctx, rec.ID, "u1", &metadata.Patch{Name: metadata.String(" ")})
	requireCode(test, err, metadata.ErrInvalidArgument)

	got, err := store.GetByIDForOwner(ctx, rec.ID, "u1")
	require.NoError(test, err)
	assert.Equal(test, "Docs", got.Name)
}

func (suite *StoreTestSuite) TestUpdate_Concurrent(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	rec := mustInsert(test, store, NewFileRecord("u1", "a.pdf", "", 10))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(starred bool) {
			defer wg.Done()
			_, err := store.Update(ctx, rec.ID, "u1", &metadata.Patch{IsStarred: metadata.Bool(starred)})
			assert.NoError(test, err)
		}(i%2 == 0)
	}
	wg.Wait()

	// Last write wins; the record must still be whole.
	got, err := store.GetByIDForOwner(ctx, rec.ID, "u1")
	require.NoError(test, err)
	assert.Equal(test, "a.pdf", got.Name)
	assert.Equal(test, int64(10), got.Size)
}

func (suite *StoreTestSuite) TestDelete_File(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	folder := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))
	rec := mustInsert(test, store, NewFileRecord("u1", "a.pdf", folder.ID, 10))

	removed, err := store.Delete(ctx, rec.ID, "u1")
	require.NoError(test, err)
	assert.Equal(test, rec.ID, removed.ID)
	assert.Equal(test, rec.BlobStorageID, removed.BlobStorageID)

	_, err = store.GetByIDForOwner(ctx, rec.ID, "u1")
	requireCode(test, err, metadata.ErrNotFound)

	children, err := store.ListChildren(ctx, "u1", folder.ID)
	require.NoError(test, err)
	assert.Empty(test, children)
}

func (suite *StoreTestSuite) TestDelete_EmptyFolder(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	folder := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))

	_, err := store.Delete(ctx, folder.ID, "u1")
	require.NoError(test, err)

	root, err := store.ListChildren(ctx, "u1", "")
	require.NoError(test, err)
	assert.Empty(test, root)
}

func (suite *StoreTestSuite) TestDelete_NonEmptyFolder(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	folder := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))
	child := mustInsert(test, store, NewFileRecord("u1", "a.pdf", folder.ID, 10))

	_, err := store.Delete(ctx, folder.ID, "u1")
	requireCode(test, err, metadata.ErrNotEmpty)
	assert.True(test, metadata.IsNotEmpty(err))

	_, err = store.GetByIDForOwner(ctx, folder.ID, "u1")
	require.NoError(test, err)

	// Once the child is gone the folder can be removed.
	_, err = store.Delete(ctx, child.ID, "u1")
	require.NoError(test, err)
	_, err = store.Delete(ctx, folder.ID, "u1")
	require.NoError(test, err)
}

func (suite *StoreTestSuite) TestDelete_ForeignOwner(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	rec := mustInsert(test, store, NewFileRecord("u1", "a.pdf", "", 10))

	_, err := store.Delete(ctx, rec.ID, "u2")
	requireCode(test, err, metadata.ErrNotFound)

	_, err = store.GetByIDForOwner(ctx, rec.ID, "u1")
	require.NoError(test, err)
}

func (suite *StoreTestSuite) TestDelete_Twice(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	rec := mustInsert(test, store, NewFileRecord("u1", "a.pdf", "", 10))

	_, err := store.Delete(ctx, rec.ID, "u1")
	require.NoError(test, err)

	_, err = store.Delete(ctx, rec.ID, "u1")
	requireCode(test, err, metadata.ErrNotFound)
}

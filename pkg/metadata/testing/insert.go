package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunInsertTests(test *testing.T) {
	test.Run("RootFolder", suite.TestInsert_RootFolder)
	test.Run("FileInFolder", suite.TestInsert_FileInFolder)
	test.Run("DuplicateID", suite.TestInsert_DuplicateID)
	test.Run("MissingParent", suite.TestInsert_MissingParent)
	test.Run("ForeignParent", suite.TestInsert_ForeignParent)
	test.Run("FileParent", suite.TestInsert_FileParent)
	test.Run("FolderWithBlob", suite.TestInsert_FolderWithBlob)
	test.Run("EmptyName", suite.TestInsert_EmptyName)
	test.Run("DuplicateSiblingNames", suite.TestInsert_DuplicateSiblingNames)
}

func (suite *StoreTestSuite) TestInsert_RootFolder(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	folder := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))

	got, err := store.GetByIDForOwner(ctx, folder.ID, "u1")
	require.NoError(test, err)
	assert.Equal(test, "Docs", got.Name)
	assert.True(test, got.IsFolder)
	assert.Equal(test, metadata.FolderMimeType, got.MimeType)
	assert.Empty(test, got.ParentID)
	assert.Empty(test, got.BlobStorageID)
	assert.Zero(test, got.Size)
	assert.False(test, got.CreatedAt.IsZero())
}

func (suite *StoreTestSuite) TestInsert_FileInFolder(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	folder := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))
	file := mustInsert(test, store, NewFileRecord("u1", "a.pdf", folder.ID, 1024))

	got, err := store.GetByIDForOwner(ctx, file.ID, "u1")
	require.NoError(test, err)
	assert.Equal(test, folder.ID, got.ParentID)
	assert.Equal(test, int64(1024), got.Size)
	assert.Equal(test, file.BlobStorageID, got.BlobStorageID)
	assert.Equal(test, file.StorageURL, got.StorageURL)
}

func (suite *StoreTestSuite) TestInsert_DuplicateID(test *testing.T) {
	store := suite.NewStore(test)

	folder := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))

	dup := NewFolderRecord("u1", "Other", "")
	dup.ID = folder.ID
	err := store.Insert(context.Background(), dup)
	requireCode(test, err, metadata.ErrAlreadyExists)
}

func (suite *StoreTestSuite) TestInsert_MissingParent(test *testing.T) {
	store := suite.NewStore(test)

	rec := NewFileRecord("u1", "a.pdf", "3f0c4f5e-0000-4000-8000-000000000000", 10)
	err := store.Insert(context.Background(), rec)
	requireCode(test, err, metadata.ErrParentNotFound)
}

func (suite *StoreTestSuite) TestInsert_ForeignParent(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	folder := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))

	err := store.Insert(ctx, NewFolderRecord("u2", "Intruder", folder.ID))
	requireCode(test, err, metadata.ErrParentNotFound)

	children, err := store.ListChildren(ctx, "u1", folder.ID)
	require.NoError(test, err)
	assert.Empty(test, children)
}

func (suite *StoreTestSuite) TestInsert_FileParent(test *testing.T) {
	store := suite.NewStore(test)

	file := mustInsert(test, store, NewFileRecord("u1", "a.pdf", "", 10))

	err := store.Insert(context.Background(), NewFolderRecord("u1", "Sub", file.ID))
	requireCode(test, err, metadata.ErrParentNotFound)
}

func (suite *StoreTestSuite) TestInsert_FolderWithBlob(test *testing.T) {
	store := suite.NewStore(test)

	folder := NewFolderRecord("u1", "Docs", "")
	folder.BlobStorageID = "blob-1"
	err := store.Insert(context.Background(), folder)
	requireCode(test, err, metadata.ErrInvalidArgument)

	_, err = store.GetByIDForOwner(context.Background(), folder.ID, "u1")
	requireCode(test, err, metadata.ErrNotFound)
}

func (suite *StoreTestSuite) TestInsert_EmptyName(test *testing.T) {
	store := suite.NewStore(test)

	err := store.Insert(context.Background(), NewFolderRecord("u1", "   ", ""))
	requireCode(test, err, metadata.ErrInvalidArgument)
}

func (suite *StoreTestSuite) TestInsert_DuplicateSiblingNames(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	first := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))
	second := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))

	children, err := store.ListChildren(ctx, "u1", "")
	require.NoError(test, err)
	assert.ElementsMatch(test, []string{first.ID, second.ID}, ids(children))
}

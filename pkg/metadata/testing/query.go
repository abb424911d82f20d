package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunQueryTests(test *testing.T) {
	test.Run("GetForeignOwner", suite.TestGet_ForeignOwnerIsNotFound)
	test.Run("GetMissing", suite.TestGet_Missing)
	test.Run("ListChildrenScoped", suite.TestListChildren_Scoped)
	test.Run("ListChildrenEmpty", suite.TestListChildren_Empty)
	test.Run("ListByOwner", suite.TestListByOwner)
	test.Run("ListBlobStorageIDs", suite.TestListBlobStorageIDs)
	test.Run("ReturnedRecordsAreCopies", suite.TestReturnedRecordsAreCopies)
}

func (suite *StoreTestSuite) TestGet_ForeignOwnerIsNotFound(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	rec := mustInsert(test, store, NewFileRecord("u1", "a.pdf", "", 10))

	_, err := store.GetByIDForOwner(ctx, rec.ID, "u2")
	requireCode(test, err, metadata.ErrNotFound)

	// Foreign and missing records must be indistinguishable.
	_, missingErr := store.GetByIDForOwner(ctx, "6b2a1c9e-0000-4000-8000-000000000000", "u2")
	requireCode(test, missingErr, metadata.ErrNotFound)
}

func (suite *StoreTestSuite) TestGet_Missing(test *testing.T) {
	store := suite.NewStore(test)

	_, err := store.GetByIDForOwner(context.Background(), "does-not-exist", "u1")
	requireCode(test, err, metadata.ErrNotFound)
	assert.True(test, metadata.IsNotFound(err))
}

func (suite *StoreTestSuite) TestListChildren_Scoped(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	docs := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))
	photos := mustInsert(test, store, NewFolderRecord("u1", "Photos", ""))
	inDocs := mustInsert(test, store, NewFileRecord("u1", "a.pdf", docs.ID, 10))
	mustInsert(test, store, NewFileRecord("u1", "b.pdf", photos.ID, 10))
	mustInsert(test, store, NewFolderRecord("u2", "Docs", ""))

	root, err := store.ListChildren(ctx, "u1", "")
	require.NoError(test, err)
	assert.ElementsMatch(test, []string{docs.ID, photos.ID}, ids(root))

	children, err := store.ListChildren(ctx, "u1", docs.ID)
	require.NoError(test, err)
	assert.Equal(test, []string{inDocs.ID}, ids(children))

	// Another owner cannot list u1's folder.
	foreign, err := store.ListChildren(ctx, "u2", docs.ID)
	require.NoError(test, err)
	assert.Empty(test, foreign)
}

func (suite *StoreTestSuite) TestListChildren_Empty(test *testing.T) {
	store := suite.NewStore(test)

	children, err := store.ListChildren(context.Background(), "nobody", "")
	require.NoError(test, err)
	assert.Empty(test, children)
}

func (suite *StoreTestSuite) TestListByOwner(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	docs := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))
	file := mustInsert(test, store, NewFileRecord("u1", "a.pdf", docs.ID, 10))
	mustInsert(test, store, NewFileRecord("u2", "b.pdf", "", 10))

	records, err := store.ListByOwner(ctx, "u1")
	require.NoError(test, err)
	assert.ElementsMatch(test, []string{docs.ID, file.ID}, ids(records))
}

func (suite *StoreTestSuite) TestListBlobStorageIDs(test *testing.T) {
	store := suite.NewStore(test)

	mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))
	a := mustInsert(test, store, NewFileRecord("u1", "a.pdf", "", 10))
	b := mustInsert(test, store, NewFileRecord("u2", "b.pdf", "", 20))

	blobIDs, err := store.ListBlobStorageIDs(context.Background())
	require.NoError(test, err)
	assert.ElementsMatch(test, []string{a.BlobStorageID, b.BlobStorageID}, blobIDs)
}

func (suite *StoreTestSuite) TestReturnedRecordsAreCopies(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	rec := mustInsert(test, store, NewFolderRecord("u1", "Docs", ""))

	got, err := store.GetByIDForOwner(ctx, rec.ID, "u1")
	require.NoError(test, err)
	got.Name = "mutated"
	got.IsStarred = true

	again, err := store.GetByIDForOwner(ctx, rec.ID, "u1")
	require.NoError(test, err)
	assert.Equal(test, "Docs", again.Name)
	assert.False(test, again.IsStarred)
}

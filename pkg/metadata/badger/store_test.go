package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittodrive/pkg/metadata"
	metadatatesting "github.com/marmos91/dittodrive/pkg/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, dir string) *BadgerMetadataStore {
	t.Helper()
	store, err := NewBadgerMetadataStore(context.Background(), BadgerMetadataStoreConfig{
		DBPath:           dir,
		BlockCacheSizeMB: 8,
		IndexCacheSizeMB: 8,
	})
	require.NoError(t, err)
	return store
}

func TestBadgerMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func(test *testing.T) metadata.Store {
			store := newTestStore(test, test.TempDir())
			test.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
	suite.Run(t)
}

func TestBadgerMetadataStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "meta")
	ctx := context.Background()

	store := newTestStore(t, dir)
	folder := metadatatesting.NewFolderRecord("u1", "Docs", "")
	require.NoError(t, store.Insert(ctx, folder))
	file := metadatatesting.NewFileRecord("u1", "a.pdf", folder.ID, 1024)
	require.NoError(t, store.Insert(ctx, file))
	require.NoError(t, store.Close())

	reopened := newTestStore(t, dir)
	defer reopened.Close()

	children, err := reopened.ListChildren(ctx, "u1", folder.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, file.ID, children[0].ID)
	assert.Equal(t, int64(1024), children[0].Size)

	// New inserts after reopen still sort after existing children.
	second := metadatatesting.NewFileRecord("u1", "b.pdf", folder.ID, 1)
	require.NoError(t, reopened.Insert(ctx, second))

	children, err = reopened.ListChildren(ctx, "u1", folder.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, file.ID, children[0].ID)
	assert.Equal(t, second.ID, children[1].ID)
}

func TestBadgerMetadataStore_OwnerWithSeparator(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()
	ctx := context.Background()

	// "u1:" at root must not show up when listing u1's root.
	require.NoError(t, store.Insert(ctx, metadatatesting.NewFolderRecord("u1:", "Theirs", "")))
	mine := metadatatesting.NewFolderRecord("u1", "Mine", "")
	require.NoError(t, store.Insert(ctx, mine))

	children, err := store.ListChildren(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, mine.ID, children[0].ID)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "f:abc", string(keyFile("abc")))
	assert.Equal(t, "c:7531::00000000000000000042", string(keyChild("u1", "", 42)))
	assert.Equal(t, "c:7531:p1:", string(keyChildPrefix("u1", "p1")))
	assert.Equal(t, "o:7531:abc", string(keyOwner("u1", "abc")))
}

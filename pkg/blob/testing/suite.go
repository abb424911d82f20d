package testing

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/marmos91/dittodrive/pkg/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestURLs is the URL builder backends should be created with when run
// through the suite.
var TestURLs = blob.URLBuilder{
	BaseURL:        "https://cdn.test",
	ThumbnailQuery: "tr=w-300,h-300",
}

// StoreTestSuite is a test suite for blob.Store implementations.
//
// Usage:
//
//	func TestMyBlobStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func(t *testing.T) blob.Store {
//	            return mystore.New(testing.TestURLs)
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) blob.Store
}

// Run executes all tests in the suite. Reader and Lister tests run only
// when the store implements those capabilities.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Put", suite.RunPutTests)
	t.Run("Delete", suite.RunDeleteTests)
	t.Run("Read", suite.RunReadTests)
	t.Run("List", suite.RunListTests)
}

func (suite *StoreTestSuite) RunPutTests(t *testing.T) {
	t.Run("ReturnsHandleAndURL", func(t *testing.T) {
		store := suite.NewStore(t)

		res, err := store.Put(context.Background(), []byte("%PDF-1.4"), "/storex/u1", "abc.pdf", "application/pdf")
		require.NoError(t, err)
		assert.Equal(t, "storex/u1/abc.pdf", res.StorageID)
		assert.Equal(t, "/storex/u1/abc.pdf", res.Path)
		assert.Equal(t, "https://cdn.test/storex/u1/abc.pdf", res.URL)
		assert.Empty(t, res.ThumbnailURL)
	})

	t.Run("ImageGetsThumbnail", func(t *testing.T) {
		store := suite.NewStore(t)

		res, err := store.Put(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "/storex/u1/folder/f1", "img.png", "image/png")
		require.NoError(t, err)
		assert.Equal(t, res.URL+"?tr=w-300,h-300", res.ThumbnailURL)
	})

	t.Run("EmptyData", func(t *testing.T) {
		store := suite.NewStore(t)

		res, err := store.Put(context.Background(), nil, "/storex/u1", "empty.pdf", "application/pdf")
		require.NoError(t, err)
		assert.NotEmpty(t, res.StorageID)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		store := suite.NewStore(t)

		_, err := store.Put(context.Background(), []byte("x"), "/storex/../../etc", "passwd", "application/pdf")
		assert.True(t, errors.Is(err, blob.ErrInvalidKey))
	})

	t.Run("CancelledContext", func(t *testing.T) {
		store := suite.NewStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.Put(ctx, []byte("x"), "/storex/u1", "a.pdf", "application/pdf")
		assert.Error(t, err)
	})
}

func (suite *StoreTestSuite) RunDeleteTests(t *testing.T) {
	t.Run("Existing", func(t *testing.T) {
		store := suite.NewStore(t)
		ctx := context.Background()

		res, err := store.Put(ctx, []byte("data"), "/storex/u1", "a.pdf", "application/pdf")
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, res.StorageID))

		if reader, ok := store.(blob.Reader); ok {
			_, err := reader.Open(ctx, res.StorageID)
			assert.True(t, errors.Is(err, blob.ErrNotFound))
		}
	})

	t.Run("MissingIsSuccess", func(t *testing.T) {
		store := suite.NewStore(t)

		assert.NoError(t, store.Delete(context.Background(), "storex/u1/never-stored.pdf"))
	})

	t.Run("Twice", func(t *testing.T) {
		store := suite.NewStore(t)
		ctx := context.Background()

		res, err := store.Put(ctx, []byte("data"), "/storex/u1", "a.pdf", "application/pdf")
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, res.StorageID))
		assert.NoError(t, store.Delete(ctx, res.StorageID))
	})
}

func (suite *StoreTestSuite) RunReadTests(t *testing.T) {
	probe := suite.NewStore(t)
	if _, ok := probe.(blob.Reader); !ok {
		t.Skip("store does not implement blob.Reader")
	}

	t.Run("RoundTrip", func(t *testing.T) {
		store := suite.NewStore(t)
		ctx := context.Background()
		payload := []byte("hello, drive")

		res, err := store.Put(ctx, payload, "/storex/u1", "hello.pdf", "application/pdf")
		require.NoError(t, err)

		rc, err := store.(blob.Reader).Open(ctx, res.StorageID)
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		store := suite.NewStore(t)
		ctx := context.Background()

		_, err := store.Put(ctx, []byte("v1"), "/storex/u1", "same.pdf", "application/pdf")
		require.NoError(t, err)
		res, err := store.Put(ctx, []byte("v2"), "/storex/u1", "same.pdf", "application/pdf")
		require.NoError(t, err)

		rc, err := store.(blob.Reader).Open(ctx, res.StorageID)
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))
	})

	t.Run("Missing", func(t *testing.T) {
		store := suite.NewStore(t)

		_, err := store.(blob.Reader).Open(context.Background(), "storex/u1/missing.pdf")
		assert.True(t, errors.Is(err, blob.ErrNotFound))
	})
}

func (suite *StoreTestSuite) RunListTests(t *testing.T) {
	probe := suite.NewStore(t)
	if _, ok := probe.(blob.Lister); !ok {
		t.Skip("store does not implement blob.Lister")
	}

	t.Run("ByPrefix", func(t *testing.T) {
		store := suite.NewStore(t)
		ctx := context.Background()

		a, err := store.Put(ctx, []byte("aaaa"), "/storex/u1", "a.pdf", "application/pdf")
		require.NoError(t, err)
		b, err := store.Put(ctx, []byte("bb"), "/storex/u1/folder/f1", "b.pdf", "application/pdf")
		require.NoError(t, err)
		_, err = store.Put(ctx, []byte("c"), "/storex/u2", "c.pdf", "application/pdf")
		require.NoError(t, err)

		infos, err := store.(blob.Lister).List(ctx, "storex/u1/")
		require.NoError(t, err)

		sizes := make(map[string]int64)
		for _, info := range infos {
			sizes[info.StorageID] = info.Size
			assert.False(t, info.LastModified.IsZero())
		}
		assert.Equal(t, map[string]int64{a.StorageID: 4, b.StorageID: 2}, sizes)
	})

	t.Run("Empty", func(t *testing.T) {
		store := suite.NewStore(t)

		infos, err := store.(blob.Lister).List(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, infos)
	})
}

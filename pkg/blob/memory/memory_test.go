package memory

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/blob"
	blobtesting "github.com/marmos91/dittodrive/pkg/blob/testing"
)

func TestMemoryBlobStore(t *testing.T) {
	suite := &blobtesting.StoreTestSuite{
		NewStore: func(t *testing.T) blob.Store {
			return NewMemoryBlobStore(blobtesting.TestURLs)
		},
	}
	suite.Run(t)
}

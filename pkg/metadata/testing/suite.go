package testing

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/metadata"
)

// StoreTestSuite is a test suite for metadata.Store implementations.
// It tests the interface contract, not implementation details, making it
// reusable across the memory, badger and sql backends.
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh, empty store
	// for each test. This ensures test isolation.
	NewStore func(test *testing.T) metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("Insert", suite.RunInsertTests)
	test.Run("Query", suite.RunQueryTests)
	test.Run("Update", suite.RunUpdateTests)
	test.Run("Delete", suite.RunDeleteTests)
	test.Run("Healthcheck", suite.RunHealthcheckTests)
}

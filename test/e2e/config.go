//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittodrive/pkg/blob"
	blobfs "github.com/marmos91/dittodrive/pkg/blob/fs"
	blobmemory "github.com/marmos91/dittodrive/pkg/blob/memory"
	blobs3 "github.com/marmos91/dittodrive/pkg/blob/s3"
	"github.com/marmos91/dittodrive/pkg/metadata"
	metadatabadger "github.com/marmos91/dittodrive/pkg/metadata/badger"
	metadatamemory "github.com/marmos91/dittodrive/pkg/metadata/memory"
	metadatasql "github.com/marmos91/dittodrive/pkg/metadata/sql"
)

// MetadataStoreType represents the type of metadata store
type MetadataStoreType string

const (
	MetadataMemory MetadataStoreType = "memory"
	MetadataBadger MetadataStoreType = "badger"
	MetadataSQLite MetadataStoreType = "sqlite"
)

// BlobStoreType represents the type of blob store
type BlobStoreType string

const (
	BlobMemory     BlobStoreType = "memory"
	BlobFilesystem BlobStoreType = "filesystem"
	BlobS3         BlobStoreType = "s3"
)

// testURLs is the URL builder every backend is created with.
var testURLs = blob.URLBuilder{BaseURL: "https://cdn.test", ThumbnailQuery: "tr=w-300,h-300"}

// TestContextProvider is an interface for providing test context dependencies
type TestContextProvider interface {
	CreateTempDir(prefix string) string
	GetConfig() *TestConfig
}

// TestConfig holds the configuration for a test run
type TestConfig struct {
	Name          string
	MetadataStore MetadataStoreType
	BlobStore     BlobStoreType

	// S3-specific fields (set by localstack setup)
	s3Client *s3.Client
	s3Bucket string
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s/%s", tc.MetadataStore, tc.BlobStore)
}

// CreateMetadataStore creates a metadata store based on the configuration
func (tc *TestConfig) CreateMetadataStore(ctx context.Context, testCtx TestContextProvider) (metadata.Store, error) {
	switch tc.MetadataStore {
	case MetadataMemory:
		return metadatamemory.NewMemoryMetadataStore(), nil

	case MetadataBadger:
		dbPath := filepath.Join(testCtx.CreateTempDir("dittodrive-badger-*"), "metadata")
		store, err := metadatabadger.NewBadgerMetadataStore(ctx, metadatabadger.BadgerMetadataStoreConfig{DBPath: dbPath})
		if err != nil {
			return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
		}
		return store, nil

	case MetadataSQLite:
		dsn := filepath.Join(testCtx.CreateTempDir("dittodrive-sqlite-*"), "metadata.db")
		store, err := metadatasql.NewSQLMetadataStore(ctx, metadatasql.SQLMetadataStoreConfig{
			Dialect: metadatasql.DialectSQLite,
			DSN:     dsn,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite metadata store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown metadata store type: %s", tc.MetadataStore)
	}
}

// CreateBlobStore creates a blob store based on the configuration
func (tc *TestConfig) CreateBlobStore(ctx context.Context, testCtx TestContextProvider) (blob.Store, error) {
	switch tc.BlobStore {
	case BlobMemory:
		return blobmemory.NewMemoryBlobStore(testURLs), nil

	case BlobFilesystem:
		store, err := blobfs.NewFSBlobStore(ctx, testCtx.CreateTempDir("dittodrive-blobs-*"), testURLs)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem blob store: %w", err)
		}
		return store, nil

	case BlobS3:
		config := testCtx.GetConfig()
		if config.s3Client == nil {
			return nil, fmt.Errorf("S3 client not initialized (localstack not running?)")
		}

		store, err := blobs3.NewS3BlobStore(ctx, blobs3.S3BlobStoreConfig{
			Client:    config.s3Client,
			Bucket:    config.s3Bucket,
			KeyPrefix: "test/",
			URLs:      testURLs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 blob store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown blob store type: %s", tc.BlobStore)
	}
}

// AllConfigurations returns all test configurations to run without
// external services
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{Name: "memory-memory", MetadataStore: MetadataMemory, BlobStore: BlobMemory},
		{Name: "memory-filesystem", MetadataStore: MetadataMemory, BlobStore: BlobFilesystem},
		{Name: "badger-filesystem", MetadataStore: MetadataBadger, BlobStore: BlobFilesystem},
		{Name: "sqlite-filesystem", MetadataStore: MetadataSQLite, BlobStore: BlobFilesystem},
	}
}

// S3Configurations returns configurations that use S3 (requires localstack)
func S3Configurations() []*TestConfig {
	return []*TestConfig{
		{Name: "memory-s3", MetadataStore: MetadataMemory, BlobStore: BlobS3},
		{Name: "badger-s3", MetadataStore: MetadataBadger, BlobStore: BlobS3},
	}
}

package testing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/stretchr/testify/require"
)

// NewFolderRecord builds a valid folder record.
func NewFolderRecord(ownerID, name, parentID string) *metadata.FileRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &metadata.FileRecord{
		ID:        uuid.NewString(),
		Name:      name,
		MimeType:  metadata.FolderMimeType,
		OwnerID:   ownerID,
		ParentID:  parentID,
		IsFolder:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewFileRecord builds a valid file record with a blob reference.
func NewFileRecord(ownerID, name, parentID string, size int64) *metadata.FileRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	blobID := uuid.NewString()
	return &metadata.FileRecord{
		ID:            uuid.NewString(),
		Name:          name,
		Path:          "/storex/" + ownerID + "/" + blobID + ".pdf",
		Size:          size,
		MimeType:      "application/pdf",
		StorageURL:    "https://cdn.example.com/storex/" + ownerID + "/" + blobID + ".pdf",
		BlobStorageID: blobID,
		OwnerID:       ownerID,
		ParentID:      parentID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// mustInsert inserts rec and fails the test on error.
func mustInsert(test *testing.T, store metadata.Store, rec *metadata.FileRecord) *metadata.FileRecord {
	test.Helper()
	require.NoError(test, store.Insert(context.Background(), rec))
	return rec
}

// requireCode asserts that err is a StoreError with the given code.
func requireCode(test *testing.T, err error, want metadata.ErrorCode) {
	test.Helper()
	require.Error(test, err)
	code, ok := metadata.CodeOf(err)
	require.True(test, ok, "expected StoreError, got %T: %v", err, err)
	require.Equal(test, want, code, "unexpected error: %v", err)
}

// ids extracts record ids.
func ids(records []*metadata.FileRecord) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ID)
	}
	return out
}

package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/blob"
)

// tempPrefix marks in-flight writes; List skips them.
const tempPrefix = ".tmp-"

// FSBlobStore implements blob.Store on the local filesystem.
//
// Blobs are stored at <basePath>/<storage id>, so the directory tree mirrors
// the object keys (storex/<owner>/folder/<parent>/<uuid>.<ext>).
//
// Writes go to a temporary file in the destination directory and are renamed
// into place, so a reader never observes a partially written blob.
//
// Thread Safety:
// Safe for concurrent use. Concurrent puts of the same key resolve
// last-rename-wins.
type FSBlobStore struct {
	basePath string
	urls     blob.URLBuilder
}

// NewFSBlobStore creates a filesystem blob store rooted at basePath.
//
// The base directory is created with permissions 0755 if it doesn't exist.
//
// Parameters:
//   - ctx: Context for cancellation
//   - basePath: Root directory for blob files
//   - urls: Builds public URLs for stored keys
//
// Returns:
//   - *FSBlobStore: Initialized store
//   - error: Returns error if directory creation fails or context is cancelled
func NewFSBlobStore(ctx context.Context, basePath string, urls blob.URLBuilder) (*FSBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSBlobStore{basePath: basePath, urls: urls}, nil
}

// filePath maps a storage id to its location under basePath.
func (s *FSBlobStore) filePath(storageID string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(storageID))
}

// unavailable wraps a filesystem error as a backend failure.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, blob.ErrBackendUnavailable, err)
}

// Put implements blob.Store.
func (s *FSBlobStore) Put(ctx context.Context, data []byte, dir, name, contentType string) (*blob.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := blob.ObjectKey(dir, name)
	if err != nil {
		return nil, err
	}

	target := s.filePath(key)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return nil, unavailable("create blob directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), tempPrefix+"*")
	if err != nil {
		return nil, unavailable("create temp file", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		if rmErr := os.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn("fs blob store: failed to remove temp file %s: %v", tmpName, rmErr)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return nil, unavailable("write blob", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return nil, unavailable("sync blob", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return nil, unavailable("close blob", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return nil, unavailable("rename blob", err)
	}

	return s.urls.Result(key, contentType), nil
}

// Delete implements blob.Store. Missing files are not an error.
func (s *FSBlobStore) Delete(ctx context.Context, storageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := blob.ValidateStorageID(storageID); err != nil {
		return err
	}

	err := os.Remove(s.filePath(storageID))
	if err != nil && !os.IsNotExist(err) {
		return unavailable("delete blob", err)
	}
	return nil
}

// Open implements blob.Reader.
func (s *FSBlobStore) Open(ctx context.Context, storageID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := blob.ValidateStorageID(storageID); err != nil {
		return nil, err
	}

	f, err := os.Open(s.filePath(storageID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("blob %s: %w", storageID, blob.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("open blob", err)
	}
	return f, nil
}

// List implements blob.Lister.
func (s *FSBlobStore) List(ctx context.Context, prefix string) ([]blob.ObjectInfo, error) {
	var infos []blob.ObjectInfo

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// Deleted while walking.
			return nil
		}
		if err != nil {
			return err
		}

		infos = append(infos, blob.ObjectInfo{
			StorageID:    key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, unavailable("list blobs", err)
	}

	return infos, nil
}

var (
	_ blob.Store  = (*FSBlobStore)(nil)
	_ blob.Reader = (*FSBlobStore)(nil)
	_ blob.Lister = (*FSBlobStore)(nil)
)

package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/metadata"
)

// BadgerMetadataStore implements metadata.Store using BadgerDB for persistence.
//
// Suitable for single-node deployments where records must survive restarts
// without running a database server.
//
// Thread Safety:
// Every mutation runs inside a single db.Update transaction, and mutations
// are serialized by mu. Reads use db.View snapshots and take no lock.
//
// Storage Model:
// Namespaced keys, see keys.go.
type BadgerMetadataStore struct {
	// mu serializes mutations so read-check-write sequences never race
	mu sync.Mutex

	// db is the BadgerDB database handle
	db *badger.DB

	// seq hands out monotonically increasing numbers for the children index
	seq *badger.Sequence

	// now returns the current time; replaced in tests.
	now func() time.Time
}

// BadgerMetadataStoreConfig contains configuration for creating a BadgerDB metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files
	DBPath string

	// BadgerOptions allows customization of BadgerDB behavior
	// If nil, sensible defaults are used
	BadgerOptions *badger.Options

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB metadata store.
//
// Parameters:
//   - ctx: Context for cancellation
//   - config: Configuration including DB path and cache sizes
//
// Returns:
//   - *BadgerMetadataStore: A new store instance ready for use
//   - error: Error if database initialization fails or context is cancelled
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		opts = badger.DefaultOptions(config.DBPath)

		// Records are small JSON documents.
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 64
		}
		indexCacheMB := config.IndexCacheSizeMB
		if indexCacheMB == 0 {
			indexCacheMB = 32
		}

		opts = opts.WithBlockCacheSize(blockCacheMB << 20)
		opts = opts.WithIndexCacheSize(indexCacheMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	seq, err := db.GetSequence([]byte(keySequence), 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize child sequence: %w", err)
	}

	logger.Debug("Badger metadata store opened at %s", config.DBPath)

	return &BadgerMetadataStore{
		db:  db,
		seq: seq,
		now: time.Now,
	}, nil
}

// update runs fn in a read-write transaction.
// StoreErrors returned by fn are passed through; anything else becomes ErrIOError.
func (s *BadgerMetadataStore) update(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return translate(op, s.db.Update(fn))
}

// view runs fn in a read-only transaction.
func (s *BadgerMetadataStore) view(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(op, s.db.View(fn))
}

func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := metadata.CodeOf(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return metadata.NewIOError(op, err)
}

// getFileData loads a record by id. Returns ErrNotFound when absent.
func getFileData(txn *badger.Txn, id string) (*fileData, error) {
	item, err := txn.Get(keyFile(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, metadata.NewNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}

	var fd *fileData
	err = item.Value(func(val []byte) error {
		var decodeErr error
		fd, decodeErr = decodeFileData(val)
		return decodeErr
	})
	return fd, err
}

// getOwned loads a record scoped to ownerID.
func getOwned(txn *badger.Txn, id, ownerID string) (*fileData, error) {
	fd, err := getFileData(txn, id)
	if err != nil {
		return nil, err
	}
	if fd.Record.OwnerID != ownerID {
		return nil, metadata.NewNotFoundError(id)
	}
	return fd, nil
}

func putFileData(txn *badger.Txn, fd *fileData) error {
	data, err := encodeFileData(fd)
	if err != nil {
		return err
	}
	return txn.Set(keyFile(fd.Record.ID), data)
}

// Insert implements metadata.Store.
func (s *BadgerMetadataStore) Insert(ctx context.Context, rec *metadata.FileRecord) error {
	if rec == nil {
		return metadata.NewInvalidArgumentError("record is nil", "")
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	seq, err := s.seq.Next()
	if err != nil {
		return metadata.NewIOError("failed to allocate child sequence", err)
	}

	stored := rec.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	fd := &fileData{
		Record:   stored,
		ChildKey: keyChild(stored.OwnerID, stored.ParentID, seq),
	}

	return s.update(ctx, "insert", func(txn *badger.Txn) error {
		if _, err := txn.Get(keyFile(stored.ID)); err == nil {
			return metadata.NewAlreadyExistsError(stored.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if stored.ParentID != "" {
			parent, err := getOwned(txn, stored.ParentID, stored.OwnerID)
			if metadata.IsNotFound(err) {
				return metadata.NewParentNotFoundError(stored.ParentID)
			}
			if err != nil {
				return err
			}
			if !parent.Record.IsFolder {
				return metadata.NewParentNotFoundError(stored.ParentID)
			}
		}

		if err := putFileData(txn, fd); err != nil {
			return err
		}
		if err := txn.Set(fd.ChildKey, []byte(stored.ID)); err != nil {
			return err
		}
		return txn.Set(keyOwner(stored.OwnerID, stored.ID), nil)
	})
}

// GetByIDForOwner implements metadata.Store.
func (s *BadgerMetadataStore) GetByIDForOwner(ctx context.Context, id, ownerID string) (*metadata.FileRecord, error) {
	var rec *metadata.FileRecord
	err := s.view(ctx, "get", func(txn *badger.Txn) error {
		fd, err := getOwned(txn, id, ownerID)
		if err != nil {
			return err
		}
		rec = fd.Record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListChildren implements metadata.Store.
func (s *BadgerMetadataStore) ListChildren(ctx context.Context, ownerID, parentID string) ([]*metadata.FileRecord, error) {
	result := make([]*metadata.FileRecord, 0)
	err := s.view(ctx, "list children", func(txn *badger.Txn) error {
		ids, err := scanValues(txn, keyChildPrefix(ownerID, parentID))
		if err != nil {
			return err
		}
		for _, id := range ids {
			fd, err := getFileData(txn, id)
			if metadata.IsNotFound(err) {
				logger.Warn("badger: children index references missing record %s", id)
				continue
			}
			if err != nil {
				return err
			}
			result = append(result, fd.Record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByOwner implements metadata.Store.
func (s *BadgerMetadataStore) ListByOwner(ctx context.Context, ownerID string) ([]*metadata.FileRecord, error) {
	var result []*metadata.FileRecord
	prefix := keyOwnerPrefix(ownerID)
	err := s.view(ctx, "list by owner", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			fd, err := getFileData(txn, id)
			if metadata.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			result = append(result, fd.Record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update implements metadata.Store.
func (s *BadgerMetadataStore) Update(ctx context.Context, id, ownerID string, patch *metadata.Patch) (*metadata.FileRecord, error) {
	var updated *metadata.FileRecord
	err := s.update(ctx, "update", func(txn *badger.Txn) error {
		fd, err := getOwned(txn, id, ownerID)
		if err != nil {
			return err
		}
		if err := patch.Apply(fd.Record, s.now()); err != nil {
			return err
		}
		if err := putFileData(txn, fd); err != nil {
			return err
		}
		updated = fd.Record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete implements metadata.Store.
func (s *BadgerMetadataStore) Delete(ctx context.Context, id, ownerID string) (*metadata.FileRecord, error) {
	var removed *metadata.FileRecord
	err := s.update(ctx, "delete", func(txn *badger.Txn) error {
		fd, err := getOwned(txn, id, ownerID)
		if err != nil {
			return err
		}

		if fd.Record.IsFolder {
			hasChildren, err := hasPrefix(txn, keyChildPrefix(ownerID, id))
			if err != nil {
				return err
			}
			if hasChildren {
				return metadata.NewNotEmptyError(id)
			}
		}

		if err := txn.Delete(keyFile(id)); err != nil {
			return err
		}
		if len(fd.ChildKey) > 0 {
			if err := txn.Delete(fd.ChildKey); err != nil {
				return err
			}
		}
		if err := txn.Delete(keyOwner(ownerID, id)); err != nil {
			return err
		}
		removed = fd.Record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ListBlobStorageIDs implements metadata.Store.
func (s *BadgerMetadataStore) ListBlobStorageIDs(ctx context.Context) ([]string, error) {
	var ids []string
	prefix := []byte(prefixFile)
	err := s.view(ctx, "list blob ids", func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				fd, err := decodeFileData(val)
				if err != nil {
					return err
				}
				if fd.Record.HasBlob() {
					ids = append(ids, fd.Record.BlobStorageID)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Healthcheck implements metadata.Store.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if s.db.IsClosed() {
		return metadata.NewIOError("badger database is closed", nil)
	}
	return s.view(ctx, "healthcheck", func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keySequence))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Close releases the sequence and closes the database.
func (s *BadgerMetadataStore) Close() error {
	if s.seq != nil {
		if err := s.seq.Release(); err != nil {
			logger.Warn("badger: failed to release sequence: %v", err)
		}
	}
	return s.db.Close()
}

// scanValues returns the values of every key under prefix, in key order.
func scanValues(txn *badger.Txn, prefix []byte) ([]string, error) {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var values []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		values = append(values, string(val))
	}
	return values, nil
}

// hasPrefix reports whether any key exists under prefix.
func hasPrefix(txn *badger.Txn, prefix []byte) (bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(prefix)
	return it.ValidForPrefix(prefix), nil
}

var _ metadata.Store = (*BadgerMetadataStore)(nil)

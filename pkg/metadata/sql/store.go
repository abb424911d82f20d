// Package sql implements metadata.Store on a relational database through GORM.
//
// The whole tree lives in a single self-referential files table: every row
// points at its parent folder through parent_id, with NULL for root-level
// records. SQLite and MySQL dialects are supported.
package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/metadata"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
)

// SQLMetadataStoreConfig contains configuration for the SQL metadata store.
type SQLMetadataStoreConfig struct {
	// Dialect selects the database driver: "sqlite" or "mysql"
	Dialect string

	// DSN is the driver-specific connection string.
	// sqlite: a file path (e.g. /var/lib/dittodrive/meta.db)
	// mysql: user:pass@tcp(host:3306)/db?charset=utf8mb4&parseTime=True&loc=UTC
	DSN string

	// MaxOpenConns limits open connections (0 = driver default; sqlite is forced to 1)
	MaxOpenConns int

	// SlowQueryThreshold logs queries slower than this at WARN (default: 1s)
	SlowQueryThreshold time.Duration
}

// SQLMetadataStore implements metadata.Store on GORM.
//
// Thread Safety:
// Mutations run in a single database transaction each, so the
// read-check-write sequences of Insert, Update and Delete are atomic with
// respect to each other.
type SQLMetadataStore struct {
	db *gorm.DB

	// now returns the current time; replaced in tests.
	now func() time.Time
}

// gormWriter routes GORM's log output through the application logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logger.Warn("gorm: "+strings.TrimSpace(format), args...)
}

// NewSQLMetadataStore opens the database and migrates the files table.
func NewSQLMetadataStore(ctx context.Context, config SQLMetadataStoreConfig) (*SQLMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch strings.ToLower(config.Dialect) {
	case "", DialectSQLite:
		dialector = sqlite.Open(config.DSN)
	case DialectMySQL:
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", config.Dialect)
	}

	slow := config.SlowQueryThreshold
	if slow == 0 {
		slow = time.Second
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", config.Dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if dialector.Name() == DialectSQLite {
		// SQLite allows a single writer; serialize at the pool.
		sqlDB.SetMaxOpenConns(1)
	} else if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}

	if err := db.WithContext(ctx).AutoMigrate(&fileRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate files table: %w", err)
	}

	logger.Debug("SQL metadata store opened (dialect=%s)", dialector.Name())

	return &SQLMetadataStore{db: db, now: time.Now}, nil
}

// translate maps GORM errors onto store errors.
func translate(op string, id string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := metadata.CodeOf(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return metadata.NewNotFoundError(id)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return metadata.NewAlreadyExistsError(id)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return metadata.NewIOError(op, err)
}

// findOwned loads the row matching (id, owner) inside tx.
func findOwned(tx *gorm.DB, id, ownerID string) (*fileRow, error) {
	var row fileRow
	err := tx.Where("id = ? AND user_id = ?", id, ownerID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, metadata.NewNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Row locks taken on the parent folder. A new child holds a shared lock on
// its parent until it commits and Delete holds an exclusive lock on the
// folder while counting children, so the two serialize instead of leaving
// an orphan. SQLite ignores locking clauses; it runs on one connection.
const (
	lockShare     = "SHARE"
	lockExclusive = "UPDATE"
)

func findOwnedLocked(tx *gorm.DB, id, ownerID, strength string) (*fileRow, error) {
	return findOwned(tx.Clauses(clause.Locking{Strength: strength}), id, ownerID)
}

// Insert implements metadata.Store.
func (s *SQLMetadataStore) Insert(ctx context.Context, rec *metadata.FileRecord) error {
	if rec == nil {
		return metadata.NewInvalidArgumentError("record is nil", "")
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	stored := rec.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&fileRow{}).Where("id = ?", stored.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return metadata.NewAlreadyExistsError(stored.ID)
		}

		if stored.ParentID != "" {
			parent, err := findOwnedLocked(tx, stored.ParentID, stored.OwnerID, lockShare)
			if metadata.IsNotFound(err) {
				return metadata.NewParentNotFoundError(stored.ParentID)
			}
			if err != nil {
				return err
			}
			if !parent.IsFolder {
				return metadata.NewParentNotFoundError(stored.ParentID)
			}
		}

		return tx.Create(toRow(stored)).Error
	})
	return translate("insert", stored.ID, err)
}

// GetByIDForOwner implements metadata.Store.
func (s *SQLMetadataStore) GetByIDForOwner(ctx context.Context, id, ownerID string) (*metadata.FileRecord, error) {
	row, err := findOwned(s.db.WithContext(ctx), id, ownerID)
	if err != nil {
		return nil, translate("get", id, err)
	}
	return row.toRecord(), nil
}

// ListChildren implements metadata.Store.
func (s *SQLMetadataStore) ListChildren(ctx context.Context, ownerID, parentID string) ([]*metadata.FileRecord, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if parentID == "" {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", parentID)
	}

	var rows []fileRow
	if err := query.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, translate("list children", parentID, err)
	}
	return toRecords(rows), nil
}

// ListByOwner implements metadata.Store.
func (s *SQLMetadataStore) ListByOwner(ctx context.Context, ownerID string) ([]*metadata.FileRecord, error) {
	var rows []fileRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Find(&rows).Error; err != nil {
		return nil, translate("list by owner", "", err)
	}
	return toRecords(rows), nil
}

// Update implements metadata.Store.
func (s *SQLMetadataStore) Update(ctx context.Context, id, ownerID string, patch *metadata.Patch) (*metadata.FileRecord, error) {
	var updated *metadata.FileRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findOwned(tx, id, ownerID)
		if err != nil {
			return err
		}

		rec := row.toRecord()
		if err := patch.Apply(rec, s.now()); err != nil {
			return err
		}

		err = tx.Model(&fileRow{}).
			Where("id = ? AND user_id = ?", id, ownerID).
			Updates(map[string]any{
				"name":       rec.Name,
				"is_starred": rec.IsStarred,
				"is_trash":   rec.IsTrashed,
				"updated_at": rec.UpdatedAt,
			}).Error
		if err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, translate("update", id, err)
	}
	return updated, nil
}

// Delete implements metadata.Store.
func (s *SQLMetadataStore) Delete(ctx context.Context, id, ownerID string) (*metadata.FileRecord, error) {
	var removed *metadata.FileRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findOwnedLocked(tx, id, ownerID, lockExclusive)
		if err != nil {
			return err
		}

		if row.IsFolder {
			var children int64
			err := tx.Model(&fileRow{}).
				Where("user_id = ? AND parent_id = ?", ownerID, id).
				Count(&children).Error
			if err != nil {
				return err
			}
			if children > 0 {
				return metadata.NewNotEmptyError(id)
			}
		}

		if err := tx.Where("id = ? AND user_id = ?", id, ownerID).Delete(&fileRow{}).Error; err != nil {
			return err
		}
		removed = row.toRecord()
		return nil
	})
	if err != nil {
		return nil, translate("delete", id, err)
	}
	return removed, nil
}

// ListBlobStorageIDs implements metadata.Store.
func (s *SQLMetadataStore) ListBlobStorageIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&fileRow{}).
		Where("blob_storage_id IS NOT NULL AND blob_storage_id <> ''").
		Pluck("blob_storage_id", &ids).Error
	if err != nil {
		return nil, translate("list blob ids", "", err)
	}
	return ids, nil
}

// Healthcheck implements metadata.Store.
func (s *SQLMetadataStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return metadata.NewIOError("healthcheck", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return metadata.NewIOError("healthcheck", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLMetadataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecords(rows []fileRow) []*metadata.FileRecord {
	records := make([]*metadata.FileRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toRecord())
	}
	return records
}

var _ metadata.Store = (*SQLMetadataStore)(nil)

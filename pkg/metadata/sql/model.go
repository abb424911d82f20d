package sql

import (
	"time"

	"github.com/marmos91/dittodrive/pkg/metadata"
)

// fileRow is the GORM model for the files table.
//
// Column names follow the relational schema the drive data has always used,
// so an existing database can be pointed at this backend.
type fileRow struct {
	ID            string  `gorm:"primaryKey;size:36"`
	Name          string  `gorm:"not null"`
	Path          string  `gorm:"not null;default:''"`
	Size          int64   `gorm:"not null;default:0"`
	Type          string  `gorm:"not null"`
	FileURL       string  `gorm:"column:file_url;not null;default:''"`
	ThumbnailURL  string  `gorm:"column:thumbnail_url"`
	BlobStorageID *string `gorm:"column:blob_storage_id;size:255;index"`
	UserID        string  `gorm:"column:user_id;size:255;not null;index:idx_files_owner_parent,priority:1"`
	ParentID      *string `gorm:"column:parent_id;size:36;index:idx_files_owner_parent,priority:2"`
	IsFolder      bool    `gorm:"not null;default:false"`
	IsStarred     bool    `gorm:"not null;default:false"`
	IsTrash       bool    `gorm:"column:is_trash;not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (fileRow) TableName() string {
	return "files"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toRow(rec *metadata.FileRecord) *fileRow {
	return &fileRow{
		ID:            rec.ID,
		Name:          rec.Name,
		Path:          rec.Path,
		Size:          rec.Size,
		Type:          rec.MimeType,
		FileURL:       rec.StorageURL,
		ThumbnailURL:  rec.ThumbnailURL,
		BlobStorageID: optional(rec.BlobStorageID),
		UserID:        rec.OwnerID,
		ParentID:      optional(rec.ParentID),
		IsFolder:      rec.IsFolder,
		IsStarred:     rec.IsStarred,
		IsTrash:       rec.IsTrashed,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func (r *fileRow) toRecord() *metadata.FileRecord {
	return &metadata.FileRecord{
		ID:            r.ID,
		Name:          r.Name,
		Path:          r.Path,
		Size:          r.Size,
		MimeType:      r.Type,
		StorageURL:    r.FileURL,
		ThumbnailURL:  r.ThumbnailURL,
		BlobStorageID: deref(r.BlobStorageID),
		OwnerID:       r.UserID,
		ParentID:      deref(r.ParentID),
		IsFolder:      r.IsFolder,
		IsStarred:     r.IsStarred,
		IsTrashed:     r.IsTrash,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

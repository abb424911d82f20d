package metadata

import (
	"fmt"
	"strings"
	"time"
)

// FolderMimeType is the type sentinel stored on folder records.
//
// It is not a real MIME type; folders have no blob and are recognised by
// IsFolder first. The sentinel is kept so listings can be rendered without
// branching on the flag.
const FolderMimeType = "folder"

// FileRecord is a single file-or-folder metadata entry.
//
// Files and folders share this shape and are distinguished by IsFolder.
// Records form a forest per owner: ParentID is empty for root-level records
// and otherwise references a folder owned by the same user.
type FileRecord struct {
	// ID is generated at creation (UUID v4) and never changes.
	ID string `json:"id"`

	// Name is the display name. Duplicates among siblings are allowed.
	Name string `json:"name"`

	// Path is the blob storage path (empty for folders).
	Path string `json:"path"`

	// Size is the byte count of the blob (0 for folders).
	Size int64 `json:"size"`

	// MimeType is the uploaded content type, or FolderMimeType.
	MimeType string `json:"mimeType"`

	// StorageURL is where the blob bytes can be retrieved (empty for folders).
	StorageURL string `json:"storageUrl"`

	// ThumbnailURL is a preview URL, only set for image uploads.
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`

	// BlobStorageID is the handle needed to delete the blob later.
	// Empty means the record has no blob (always the case for folders).
	BlobStorageID string `json:"blobStorageId,omitempty"`

	// OwnerID identifies the owning user. Immutable.
	OwnerID string `json:"ownerId"`

	// ParentID is the containing folder, or empty for root-level records.
	ParentID string `json:"parentId,omitempty"`

	IsFolder  bool `json:"isFolder"`
	IsStarred bool `json:"isStarred"`
	IsTrashed bool `json:"isTrashed"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasBlob reports whether the record references a blob in the blob store.
func (r *FileRecord) HasBlob() bool {
	return r.BlobStorageID != ""
}

// IsRoot reports whether the record lives at the root of its owner's tree.
func (r *FileRecord) IsRoot() bool {
	return r.ParentID == ""
}

// Clone returns a copy of the record. Stores hand out clones so callers
// can never mutate stored state behind the store's back.
func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Validate checks the per-record invariants that do not need other records.
//
// Parent checks (existence, ownership, folder-ness) need the store and are
// done by each Store implementation on Insert.
func (r *FileRecord) Validate() error {
	if r.ID == "" {
		return NewInvalidArgumentError("record id is required", "")
	}
	if strings.TrimSpace(r.Name) == "" {
		return NewInvalidArgumentError("record name is required", r.ID)
	}
	if r.OwnerID == "" {
		return NewInvalidArgumentError("record owner is required", r.ID)
	}
	if r.Size < 0 {
		return NewInvalidArgumentError(fmt.Sprintf("negative size %d", r.Size), r.ID)
	}
	if r.ParentID == r.ID {
		return NewInvalidArgumentError("record cannot be its own parent", r.ID)
	}

	if r.IsFolder {
		if r.Size != 0 || r.StorageURL != "" || r.BlobStorageID != "" || r.Path != "" {
			return NewInvalidArgumentError("folders cannot carry blob data", r.ID)
		}
	}

	return nil
}

// Patch describes a partial update. Nil fields are left unchanged.
type Patch struct {
	Name      *string
	IsStarred *bool
	IsTrashed *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p *Patch) IsEmpty() bool {
	return p == nil || (p.Name == nil && p.IsStarred == nil && p.IsTrashed == nil)
}

// Apply writes the patch onto rec and refreshes UpdatedAt.
func (p *Patch) Apply(rec *FileRecord, now time.Time) error {
	if p != nil {
		if p.Name != nil {
			name := strings.TrimSpace(*p.Name)
			if name == "" {
				return NewInvalidArgumentError("record name is required", rec.ID)
			}
			rec.Name = name
		}
		if p.IsStarred != nil {
			rec.IsStarred = *p.IsStarred
		}
		if p.IsTrashed != nil {
			rec.IsTrashed = *p.IsTrashed
		}
	}
	rec.UpdatedAt = now
	return nil
}

// Bool returns a pointer to v, for building patches.
func Bool(v bool) *bool {
	return &v
}

// String returns a pointer to v, for building patches.
func String(v string) *string {
	return &v
}

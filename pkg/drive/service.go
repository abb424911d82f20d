// Package drive implements the file and folder operations of the drive:
// creating folders, uploading, starring, trashing and deleting, all scoped
// to the owning user.
//
// The service composes a metadata.Store and a blob.Store. Blob calls always
// complete before the metadata half of an operation runs, so a failed put
// never leaves a record behind and a failed blob delete never removes one.
package drive

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/blob"
	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/marmos91/dittodrive/pkg/metrics"
)

// ChangeObserver is notified after an operation changed the amount of
// stored data of an owner (upload, delete). Usage accounting uses it to
// drop cached totals.
type ChangeObserver interface {
	RecordChanged(ctx context.Context, ownerID string)
}

// Service implements the drive operations.
//
// Thread Safety:
// Safe for concurrent use. The service holds no mutable state; atomicity
// per record is provided by the metadata store.
type Service struct {
	store    metadata.Store
	blobs    blob.Store
	config   Config
	observer ChangeObserver
	metrics  metrics.DriveMetrics

	// now and newID are replaced in tests.
	now   func() time.Time
	newID func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithObserver registers an observer for size-changing operations.
func WithObserver(observer ChangeObserver) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

// WithMetrics enables operation metrics. Nil keeps the no-op implementation.
func WithMetrics(m metrics.DriveMetrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService creates a drive service.
func NewService(store metadata.Store, blobs blob.Store, config Config, opts ...Option) *Service {
	s := &Service{
		store:   store,
		blobs:   blobs,
		config:  config,
		metrics: metrics.NewNoopDriveMetrics(),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload is one file of a multi-file upload.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// UploadFailure reports a file of a multi-file upload that was not stored.
type UploadFailure struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// UploadReport is the outcome of UploadFiles. Partial success is normal.
type UploadReport struct {
	Files  []*metadata.FileRecord `json:"files"`
	Failed []UploadFailure        `json:"failed"`
}

// ListOptions filters ListChildren.
type ListOptions struct {
	// NameContains keeps records whose name contains this text, ignoring case.
	NameContains string

	// ExcludeTrashed drops trashed records.
	ExcludeTrashed bool
}

// observe records the outcome of an operation.
func (s *Service) observe(op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	s.metrics.RecordOperation(op, time.Since(start), outcome)
}

func (s *Service) notifyChanged(ctx context.Context, ownerID string) {
	if s.observer != nil {
		s.observer.RecordChanged(ctx, ownerID)
	}
}

func requireOwner(op, ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return newError(KindUnauthorized, op, "unauthorized", nil)
	}
	return nil
}

// requireFolder checks that parentID names a folder owned by ownerID.
// Missing, foreign and non-folder parents all fail KindParentNotFound.
func (s *Service) requireFolder(ctx context.Context, op, ownerID, parentID string) error {
	parent, err := s.store.GetByIDForOwner(ctx, parentID, ownerID)
	if metadata.IsNotFound(err) {
		return newError(KindParentNotFound, op, "parent folder not found", err)
	}
	if err != nil {
		return fromStoreError(op, err)
	}
	if !parent.IsFolder {
		return newError(KindParentNotFound, op, "parent folder not found", nil)
	}
	return nil
}

// CreateFolder creates a folder named name under parentID (empty for root).
func (s *Service) CreateFolder(ctx context.Context, ownerID, name, parentID string) (rec *metadata.FileRecord, err error) {
	const op = "create_folder"
	defer func(start time.Time) { s.observe(op, start, err) }(time.Now())

	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(KindInvalidInput, op, "folder name is required", nil)
	}

	if parentID != "" {
		if err := s.requireFolder(ctx, op, ownerID, parentID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	rec = &metadata.FileRecord{
		ID:        s.newID(),
		Name:      name,
		MimeType:  metadata.FolderMimeType,
		OwnerID:   ownerID,
		ParentID:  parentID,
		IsFolder:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fromStoreError(op, err)
	}

	logger.Debug("Folder created: owner=%s id=%s name=%q parent=%q", ownerID, rec.ID, name, parentID)
	return rec, nil
}

// UploadFile stores data in the blob backend and records it under parentID.
//
// The MIME type is checked before anything else; a rejected type never
// reaches the blob store. If the put fails no record is created. If the
// record cannot be created after a successful put, the blob is deleted
// again on a best-effort basis; whatever that misses is left to the
// orphan sweep.
func (s *Service) UploadFile(ctx context.Context, ownerID string, data []byte, fileName, mimeType, parentID string) (rec *metadata.FileRecord, err error) {
	const op = "upload"
	defer func(start time.Time) { s.observe(op, start, err) }(time.Now())

	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}

	if !s.config.mimeAllowed(mimeType) {
		return nil, newError(KindInvalidInput, op, "only images and PDF files are supported", nil)
	}

	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, newError(KindInvalidInput, op, "file name is required", nil)
	}
	if data == nil {
		return nil, newError(KindInvalidInput, op, "no file provided", nil)
	}

	dir, err := s.config.uploadDir(ownerID, parentID)
	if err != nil {
		return nil, fromBlobError(op, err)
	}

	if parentID != "" {
		if err := s.requireFolder(ctx, op, ownerID, parentID); err != nil {
			return nil, err
		}
	}

	id := s.newID()

	putStart := time.Now()
	stored, err := s.blobs.Put(ctx, data, dir, storedName(id, fileName), mimeType)
	s.metrics.RecordBlobOperation("put", time.Since(putStart), err)
	if err != nil {
		logger.Warn("Upload failed: owner=%s name=%q: %v", ownerID, fileName, err)
		return nil, fromBlobError(op, err)
	}

	now := s.now()
	rec = &metadata.FileRecord{
		ID:            id,
		Name:          fileName,
		Path:          stored.Path,
		Size:          int64(len(data)),
		MimeType:      mimeType,
		StorageURL:    stored.URL,
		ThumbnailURL:  stored.ThumbnailURL,
		BlobStorageID: stored.StorageID,
		OwnerID:       ownerID,
		ParentID:      parentID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		s.compensateUpload(ctx, stored.StorageID)
		return nil, fromStoreError(op, err)
	}

	s.metrics.RecordUploadBytes(mimeType, rec.Size)
	s.notifyChanged(ctx, ownerID)

	logger.Info("File uploaded: owner=%s id=%s name=%q size=%s", ownerID, rec.ID, fileName, humanize.IBytes(uint64(rec.Size)))
	return rec, nil
}

// compensateUpload removes a blob whose record could not be created.
func (s *Service) compensateUpload(ctx context.Context, storageID string) {
	// The request may already be cancelled; the cleanup must still run.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	start := time.Now()
	err := s.blobs.Delete(cleanupCtx, storageID)
	s.metrics.RecordBlobOperation("delete", time.Since(start), err)
	if err != nil {
		logger.Warn("Orphaned blob %s left for garbage collection: %v", storageID, err)
		return
	}
	logger.Debug("Removed blob %s after failed record insert", storageID)
}

// UploadFiles uploads each file independently. A failing file never
// affects the others; failures are reported per file.
func (s *Service) UploadFiles(ctx context.Context, ownerID string, files []Upload, parentID string) (*UploadReport, error) {
	if err := requireOwner("upload", ownerID); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, newError(KindInvalidInput, "upload", "no file provided", nil)
	}

	report := &UploadReport{
		Files:  make([]*metadata.FileRecord, 0, len(files)),
		Failed: make([]UploadFailure, 0),
	}

	for _, file := range files {
		rec, err := s.UploadFile(ctx, ownerID, file.Data, file.Name, file.MimeType, parentID)
		if err != nil {
			failure := UploadFailure{Name: file.Name, Kind: KindOf(err).String(), Message: err.Error()}
			var driveErr *Error
			if errors.As(err, &driveErr) {
				failure.Message = driveErr.Message
			}
			report.Failed = append(report.Failed, failure)
			continue
		}
		report.Files = append(report.Files, rec)
	}

	if len(report.Failed) > 0 {
		logger.Info("Multi-upload: owner=%s stored=%d failed=%d", ownerID, len(report.Files), len(report.Failed))
	}
	return report, nil
}

// ToggleStar flips the starred flag of a record.
func (s *Service) ToggleStar(ctx context.Context, ownerID, id string) (rec *metadata.FileRecord, err error) {
	const op = "toggle_star"
	defer func(start time.Time) { s.observe(op, start, err) }(time.Now())

	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}

	current, err := s.store.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, fromStoreError(op, err)
	}

	rec, err = s.store.Update(ctx, id, ownerID, &metadata.Patch{IsStarred: metadata.Bool(!current.IsStarred)})
	if err != nil {
		return nil, fromStoreError(op, err)
	}
	return rec, nil
}

// ToggleTrash flips the trashed flag of a record.
//
// Trashing is a flag, never a move. For a folder the new state is applied
// to every descendant as well, so trashing hides the whole subtree and
// restoring brings it back. Descendants are updated before the folder
// itself: if the cascade fails the folder keeps its old state and a retry
// targets the same state again, finishing the subtree.
func (s *Service) ToggleTrash(ctx context.Context, ownerID, id string) (rec *metadata.FileRecord, err error) {
	const op = "toggle_trash"
	defer func(start time.Time) { s.observe(op, start, err) }(time.Now())

	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}

	current, err := s.store.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, fromStoreError(op, err)
	}
	trashed := !current.IsTrashed

	if current.IsFolder {
		count, err := s.cascadeTrash(ctx, ownerID, id, trashed)
		if err != nil {
			logger.Error("Trash cascade incomplete: owner=%s folder=%s trashed=%v updated=%d: %v", ownerID, id, trashed, count, err)
			return nil, fromStoreError(op, err)
		}
		if count > 0 {
			logger.Debug("Trash cascade: owner=%s folder=%s trashed=%v descendants=%d", ownerID, id, trashed, count)
		}
	}

	rec, err = s.store.Update(ctx, id, ownerID, &metadata.Patch{IsTrashed: metadata.Bool(trashed)})
	if err != nil {
		return nil, fromStoreError(op, err)
	}
	return rec, nil
}

// cascadeTrash applies trashed to every descendant of folderID,
// breadth-first. Returns the number of records updated.
func (s *Service) cascadeTrash(ctx context.Context, ownerID, folderID string, trashed bool) (int, error) {
	patch := &metadata.Patch{IsTrashed: metadata.Bool(trashed)}
	queue := []string{folderID}
	count := 0

	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		children, err := s.store.ListChildren(ctx, ownerID, parent)
		if err != nil {
			return count, err
		}

		for _, child := range children {
			if child.IsFolder {
				queue = append(queue, child.ID)
			}
			if child.IsTrashed == trashed {
				continue
			}
			_, err := s.store.Update(ctx, child.ID, ownerID, patch)
			if metadata.IsNotFound(err) {
				// Deleted concurrently.
				continue
			}
			if err != nil {
				return count, err
			}
			count++
		}
	}

	return count, nil
}

// DeleteFile permanently removes a record and its blob.
//
// Folders that still have children are rejected with KindConflict. The
// blob is deleted first: if that fails the record stays untouched. If the
// record cannot be removed after its blob is gone, the error is
// KindInternal and the inconsistency is logged for reconciliation.
func (s *Service) DeleteFile(ctx context.Context, ownerID, id string) (rec *metadata.FileRecord, err error) {
	const op = "delete"
	defer func(start time.Time) { s.observe(op, start, err) }(time.Now())

	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}

	current, err := s.store.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, fromStoreError(op, err)
	}

	if current.IsFolder {
		children, err := s.store.ListChildren(ctx, ownerID, id)
		if err != nil {
			return nil, fromStoreError(op, err)
		}
		if len(children) > 0 {
			return nil, newError(KindConflict, op, "folder is not empty", nil)
		}
	}

	if current.HasBlob() {
		start := time.Now()
		err := s.blobs.Delete(ctx, current.BlobStorageID)
		s.metrics.RecordBlobOperation("delete", time.Since(start), err)
		if err != nil {
			logger.Warn("Delete aborted, blob delete failed: owner=%s id=%s blob=%s: %v", ownerID, id, current.BlobStorageID, err)
			return nil, fromBlobError(op, err)
		}
	}

	rec, err = s.store.Delete(ctx, id, ownerID)
	if err != nil {
		if current.HasBlob() && !metadata.IsNotFound(err) {
			logger.Error("Inconsistent state, blob deleted but record kept: owner=%s id=%s blob=%s: %v",
				ownerID, id, current.BlobStorageID, err)
			return nil, newError(KindInternal, op, "file content removed but record could not be deleted", err)
		}
		return nil, fromStoreError(op, err)
	}

	if rec.HasBlob() {
		s.notifyChanged(ctx, ownerID)
	}

	logger.Info("Deleted: owner=%s id=%s name=%q folder=%v", ownerID, id, rec.Name, rec.IsFolder)
	return rec, nil
}

// ListChildren lists the records of ownerID directly under parentID
// (empty for root).
func (s *Service) ListChildren(ctx context.Context, ownerID, parentID string, opts ListOptions) (records []*metadata.FileRecord, err error) {
	const op = "list"
	defer func(start time.Time) { s.observe(op, start, err) }(time.Now())

	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}

	children, err := s.store.ListChildren(ctx, ownerID, parentID)
	if err != nil {
		return nil, fromStoreError(op, err)
	}

	needle := strings.ToLower(strings.TrimSpace(opts.NameContains))
	records = make([]*metadata.FileRecord, 0, len(children))
	for _, child := range children {
		if opts.ExcludeTrashed && child.IsTrashed {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(child.Name), needle) {
			continue
		}
		records = append(records, child)
	}
	return records, nil
}

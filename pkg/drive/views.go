package drive

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/blob"
	"github.com/marmos91/dittodrive/pkg/metadata"
)

// maxBreadcrumbDepth bounds the ancestor walk.
const maxBreadcrumbDepth = 256

// GetFile returns a single record of ownerID.
func (s *Service) GetFile(ctx context.Context, ownerID, id string) (*metadata.FileRecord, error) {
	const op = "get"

	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}

	rec, err := s.store.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, fromStoreError(op, err)
	}
	return rec, nil
}

// Breadcrumbs returns the chain from the root-level ancestor down to the
// record itself. The walk stops early at a parent that no longer resolves.
func (s *Service) Breadcrumbs(ctx context.Context, ownerID, id string) ([]*metadata.FileRecord, error) {
	const op = "breadcrumbs"

	rec, err := s.GetFile(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	chain := []*metadata.FileRecord{rec}
	for parentID := rec.ParentID; parentID != "" && len(chain) < maxBreadcrumbDepth; {
		parent, err := s.store.GetByIDForOwner(ctx, parentID, ownerID)
		if metadata.IsNotFound(err) {
			logger.Warn("Breadcrumbs: owner=%s record=%s has unresolvable ancestor %s", ownerID, id, parentID)
			break
		}
		if err != nil {
			return nil, fromStoreError(op, err)
		}
		chain = append(chain, parent)
		parentID = parent.ParentID
	}

	// Collected leaf-first; callers want root-first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// ListStarred returns the owner's starred records that are not in the trash.
func (s *Service) ListStarred(ctx context.Context, ownerID string) ([]*metadata.FileRecord, error) {
	return s.listWhere(ctx, "list_starred", ownerID, func(r *metadata.FileRecord) bool {
		return r.IsStarred && !r.IsTrashed
	})
}

// ListTrashed returns the owner's trashed records.
func (s *Service) ListTrashed(ctx context.Context, ownerID string) ([]*metadata.FileRecord, error) {
	return s.listWhere(ctx, "list_trashed", ownerID, func(r *metadata.FileRecord) bool {
		return r.IsTrashed
	})
}

func (s *Service) listWhere(ctx context.Context, op, ownerID string, keep func(*metadata.FileRecord) bool) ([]*metadata.FileRecord, error) {
	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}

	all, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fromStoreError(op, err)
	}

	result := make([]*metadata.FileRecord, 0)
	for _, rec := range all {
		if keep(rec) {
			result = append(result, rec)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Download opens the blob of a file. The caller must close the reader.
func (s *Service) Download(ctx context.Context, ownerID, id string) (io.ReadCloser, *metadata.FileRecord, error) {
	const op = "download"

	rec, err := s.GetFile(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	if rec.IsFolder || !rec.HasBlob() {
		return nil, nil, newError(KindInvalidInput, op, "folders cannot be downloaded", nil)
	}

	reader, ok := s.blobs.(blob.Reader)
	if !ok {
		return nil, nil, newError(KindInternal, op, "storage backend does not support downloads", nil)
	}

	start := time.Now()
	body, err := reader.Open(ctx, rec.BlobStorageID)
	s.metrics.RecordBlobOperation("open", time.Since(start), err)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			logger.Warn("Download: owner=%s id=%s references missing blob %s", ownerID, id, rec.BlobStorageID)
		}
		return nil, nil, fromBlobError(op, err)
	}
	return body, rec, nil
}

// DeleteFailure reports a record EmptyTrash could not delete.
type DeleteFailure struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// TrashReport is the outcome of EmptyTrash.
type TrashReport struct {
	Deleted []*metadata.FileRecord `json:"deleted"`
	Failed  []DeleteFailure        `json:"failed"`
}

// EmptyTrash permanently deletes every trashed record of ownerID.
//
// Records are deleted deepest-first with DeleteFile semantics, so a folder
// is only removed once its trashed contents are gone. A folder still
// holding records that are not trashed is reported as a failure and kept.
func (s *Service) EmptyTrash(ctx context.Context, ownerID string) (*TrashReport, error) {
	const op = "empty_trash"

	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}

	all, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fromStoreError(op, err)
	}

	parents := make(map[string]string, len(all))
	for _, rec := range all {
		parents[rec.ID] = rec.ParentID
	}

	type candidate struct {
		rec   *metadata.FileRecord
		depth int
	}
	var trashed []candidate
	for _, rec := range all {
		if rec.IsTrashed {
			trashed = append(trashed, candidate{rec: rec, depth: depthOf(rec.ID, parents)})
		}
	}
	sort.SliceStable(trashed, func(i, j int) bool { return trashed[i].depth > trashed[j].depth })

	report := &TrashReport{
		Deleted: make([]*metadata.FileRecord, 0, len(trashed)),
		Failed:  make([]DeleteFailure, 0),
	}
	for _, c := range trashed {
		removed, err := s.DeleteFile(ctx, ownerID, c.rec.ID)
		if err != nil {
			failure := DeleteFailure{ID: c.rec.ID, Name: c.rec.Name, Kind: KindOf(err).String(), Message: err.Error()}
			var driveErr *Error
			if errors.As(err, &driveErr) {
				failure.Message = driveErr.Message
			}
			report.Failed = append(report.Failed, failure)
			continue
		}
		report.Deleted = append(report.Deleted, removed)
	}

	logger.Info("Trash emptied: owner=%s deleted=%d failed=%d", ownerID, len(report.Deleted), len(report.Failed))
	return report, nil
}

// depthOf counts the ancestors of id, bounded to guard against corrupt data.
func depthOf(id string, parents map[string]string) int {
	depth := 0
	for parent := parents[id]; parent != "" && depth < maxBreadcrumbDepth; parent = parents[parent] {
		depth++
	}
	return depth
}

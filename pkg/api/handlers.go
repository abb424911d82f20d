package api

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/adapter"
	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/metrics"
)

// multipartMemory is the part of a multipart form kept in memory; the
// rest spills to temporary files.
const multipartMemory = 32 << 20

type handlers struct {
	services       *adapter.Services
	maxUploadBytes int64
}

type createFolderRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID string `json:"parentId"`
	UserID   string `json:"userId"`
}

// health reports whether the metadata store answers.
func (h *handlers) health(c *gin.Context) {
	if err := h.services.Metadata.Healthcheck(c.Request.Context()); err != nil {
		logger.Warn("Healthcheck failed: %v", err)
		respondError(c, http.StatusServiceUnavailable, "metadata store unavailable")
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"status": "healthy"})
}

func (h *handlers) metrics(c *gin.Context) {
	handler := metrics.Handler()
	if handler == nil {
		respondError(c, http.StatusServiceUnavailable, "metrics collection is disabled")
		return
	}
	handler.ServeHTTP(c.Writer, c.Request)
}

func (h *handlers) listFiles(c *gin.Context) {
	excludeTrashed, _ := strconv.ParseBool(c.Query("excludeTrashed"))

	records, err := h.services.Drive.ListChildren(c.Request.Context(), ownerID(c), c.Query("parentId"), drive.ListOptions{
		NameContains:   c.Query("q"),
		ExcludeTrashed: excludeTrashed,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, "", records)
}

func (h *handlers) createFolder(c *gin.Context) {
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "folder name is required")
		return
	}
	if !claimMatches(c, req.UserID) {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	rec, err := h.services.Drive.CreateFolder(c.Request.Context(), ownerID(c), req.Name, req.ParentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, "folder created", rec)
}

func (h *handlers) upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			respondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		respondError(c, http.StatusBadRequest, "invalid multipart form")
		return
	}
	form := c.Request.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	if !claimMatches(c, c.Request.FormValue("userId")) {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	headers := form.File["file"]
	if len(headers) == 0 {
		respondError(c, http.StatusBadRequest, "no file provided")
		return
	}

	files := make([]drive.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			logger.Warn("Reading upload part %q failed: %v", fh.Filename, err)
			respondError(c, http.StatusBadRequest, "could not read uploaded file")
			return
		}
		files = append(files, drive.Upload{Name: fh.Filename, MimeType: partMimeType(fh), Data: data})
	}

	report, err := h.services.Drive.UploadFiles(c.Request.Context(), ownerID(c), files, c.Request.FormValue("parentId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if len(report.Files) == 0 {
		first := report.Failed[0]
		c.AbortWithStatusJSON(statusForKindName(first.Kind), Response{Success: false, Message: first.Message, Data: report})
		return
	}

	message := "file uploaded"
	if len(report.Failed) > 0 {
		message = fmt.Sprintf("%d of %d files uploaded", len(report.Files), len(files))
	}
	respond(c, http.StatusCreated, message, report)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// partMimeType returns the declared type of a part, falling back to the
// file extension when the client sent none or a generic one.
func partMimeType(fh *multipart.FileHeader) string {
	declared := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); byExt != "" {
		return byExt
	}
	return declared
}

func (h *handlers) getFile(c *gin.Context) {
	rec, err := h.services.Drive.GetFile(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, "", rec)
}

func (h *handlers) breadcrumbs(c *gin.Context) {
	chain, err := h.services.Drive.Breadcrumbs(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, "", chain)
}

func (h *handlers) download(c *gin.Context) {
	body, rec, err := h.services.Drive.Download(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, rec.Size, rec.MimeType, body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": rec.Name}),
	})
}

func (h *handlers) toggleTrash(c *gin.Context) {
	rec, err := h.services.Drive.ToggleTrash(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	message := "moved to trash"
	if !rec.IsTrashed {
		message = "restored from trash"
	}
	respond(c, http.StatusOK, message, rec)
}

func (h *handlers) toggleStar(c *gin.Context) {
	rec, err := h.services.Drive.ToggleStar(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, "", rec)
}

func (h *handlers) deleteFile(c *gin.Context) {
	rec, err := h.services.Drive.DeleteFile(c.Request.Context(), ownerID(c), c.Param("id"))
	if drive.IsKind(err, drive.KindBackendUnavailable) {
		// A delete that did not finish is a 500 whichever store failed.
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, "failed to delete file")
		return
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, "deleted", rec)
}

func (h *handlers) storage(c *gin.Context) {
	u, err := h.services.Usage.ComputeUsage(c.Request.Context(), ownerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, "", u)
}

func (h *handlers) starred(c *gin.Context) {
	records, err := h.services.Drive.ListStarred(c.Request.Context(), ownerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, "", records)
}

func (h *handlers) trash(c *gin.Context) {
	records, err := h.services.Drive.ListTrashed(c.Request.Context(), ownerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, "", records)
}

func (h *handlers) emptyTrash(c *gin.Context) {
	report, err := h.services.Drive.EmptyTrash(c.Request.Context(), ownerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, fmt.Sprintf("%d deleted", len(report.Deleted)), report)
}

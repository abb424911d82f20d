package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/usage"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message})
}

// statusForKind maps a service error kind onto an HTTP status.
func statusForKind(kind drive.Kind) int {
	switch kind {
	case drive.KindUnauthorized:
		return http.StatusUnauthorized
	case drive.KindInvalidInput:
		return http.StatusBadRequest
	case drive.KindNotFound, drive.KindParentNotFound:
		return http.StatusNotFound
	case drive.KindConflict:
		return http.StatusConflict
	case drive.KindBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// statusForKindName is statusForKind for the kind names carried in
// per-file failure reports.
func statusForKindName(name string) int {
	for _, kind := range []drive.Kind{
		drive.KindUnauthorized, drive.KindInvalidInput, drive.KindNotFound,
		drive.KindParentNotFound, drive.KindConflict, drive.KindBackendUnavailable,
	} {
		if kind.String() == name {
			return statusForKind(kind)
		}
	}
	return http.StatusInternalServerError
}

// respondServiceError translates an error returned by the drive service
// or the accountant. Internal details never reach the client.
func respondServiceError(c *gin.Context, err error) {
	if errors.Is(err, usage.ErrOwnerRequired) {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	kind := drive.KindOf(err)
	status := statusForKind(kind)

	message := "internal server error"
	var driveErr *drive.Error
	if errors.As(err, &driveErr) && status != http.StatusInternalServerError {
		message = driveErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}

	respondError(c, status, message)
}

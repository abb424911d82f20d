package drive

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittodrive/pkg/blob"
	"github.com/marmos91/dittodrive/pkg/metadata"
)

// Kind classifies a service failure. Every error returned by Service
// carries exactly one Kind, which the API layer maps onto a status code.
type Kind int

const (
	// KindInternal is an unexpected or store-level failure.
	KindInternal Kind = iota

	// KindUnauthorized means the caller identity is missing or does not
	// match the owner the request names.
	KindUnauthorized

	// KindInvalidInput covers empty names, unsupported MIME types and
	// missing required fields.
	KindInvalidInput

	// KindNotFound means the record is absent or owned by somebody else.
	// The two cases are deliberately indistinguishable.
	KindNotFound

	// KindParentNotFound is KindNotFound for the parent folder of a
	// create or upload.
	KindParentNotFound

	// KindConflict means the operation cannot apply to the record's
	// current state, such as deleting a folder that still has children.
	KindConflict

	// KindBackendUnavailable means the blob backend failed.
	KindBackendUnavailable
)

// String returns the kind name, used in logs, metrics and API messages.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindParentNotFound:
		return "parent_not_found"
	case KindConflict:
		return "conflict"
	case KindBackendUnavailable:
		return "backend_unavailable"
	default:
		return "internal"
	}
}

// Error is the error type returned by every Service operation.
type Error struct {
	// Kind classifies the failure
	Kind Kind

	// Op is the service operation that failed (e.g. "upload", "delete")
	Op string

	// Message is safe to show to the caller
	Message string

	// Err is the underlying cause, if any. Never shown to callers.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// KindOf returns the Kind of err. Errors that did not come from the
// service (and nil) report KindInternal.
func KindOf(err error) Kind {
	var driveErr *Error
	if errors.As(err, &driveErr) {
		return driveErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind Kind) bool {
	var driveErr *Error
	return errors.As(err, &driveErr) && driveErr.Kind == kind
}

// fromStoreError classifies a metadata store error.
func fromStoreError(op string, err error) *Error {
	var driveErr *Error
	if errors.As(err, &driveErr) {
		return driveErr
	}

	code, ok := metadata.CodeOf(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return newError(KindInternal, op, "request cancelled", err)
		}
		return newError(KindInternal, op, "metadata store failure", err)
	}

	switch code {
	case metadata.ErrNotFound:
		return newError(KindNotFound, op, "file not found", err)
	case metadata.ErrParentNotFound:
		return newError(KindParentNotFound, op, "parent folder not found", err)
	case metadata.ErrInvalidArgument:
		return newError(KindInvalidInput, op, "invalid record", err)
	case metadata.ErrNotEmpty:
		return newError(KindConflict, op, "folder is not empty", err)
	case metadata.ErrAlreadyExists:
		return newError(KindConflict, op, "record already exists", err)
	default:
		return newError(KindInternal, op, "metadata store failure", err)
	}
}

// fromBlobError classifies a blob store error.
func fromBlobError(op string, err error) *Error {
	if errors.Is(err, blob.ErrInvalidKey) {
		return newError(KindInvalidInput, op, "invalid storage path", err)
	}
	if errors.Is(err, blob.ErrNotFound) {
		return newError(KindNotFound, op, "file content not found", err)
	}
	return newError(KindBackendUnavailable, op, "storage backend unavailable", err)
}

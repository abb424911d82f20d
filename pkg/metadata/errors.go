package metadata

import "errors"

// StoreError represents a domain error from metadata store operations.
//
// These are business logic errors (record not found, parent missing, etc.)
// as opposed to infrastructure errors (disk failure, lost connection), which
// are reported with ErrIOError.
//
// The drive service translates StoreError codes into its own error kinds.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// ID is the record id related to the error (if applicable)
	ID string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return e.Message + ": " + e.ID
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the record doesn't exist or is owned by someone else.
	// The two cases are deliberately indistinguishable.
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a record with the same id already exists
	ErrAlreadyExists

	// ErrNotEmpty indicates a folder still has children (cannot be removed)
	ErrNotEmpty

	// ErrInvalidArgument indicates invalid record contents
	// Examples: empty name, folder carrying blob fields, negative size
	ErrInvalidArgument

	// ErrParentNotFound indicates the referenced parent is missing, not owned
	// by the record's owner, or not a folder
	ErrParentNotFound

	// ErrIOError indicates the underlying storage failed
	ErrIOError
)

// String returns the code name, used in logs and metrics labels.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not_found"
	case ErrAlreadyExists:
		return "already_exists"
	case ErrNotEmpty:
		return "not_empty"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrParentNotFound:
		return "parent_not_found"
	case ErrIOError:
		return "io_error"
	default:
		return "unknown"
	}
}

func NewNotFoundError(id string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: "record not found", ID: id}
}

func NewAlreadyExistsError(id string) *StoreError {
	return &StoreError{Code: ErrAlreadyExists, Message: "record already exists", ID: id}
}

func NewNotEmptyError(id string) *StoreError {
	return &StoreError{Code: ErrNotEmpty, Message: "folder is not empty", ID: id}
}

func NewInvalidArgumentError(msg, id string) *StoreError {
	return &StoreError{Code: ErrInvalidArgument, Message: msg, ID: id}
}

func NewParentNotFoundError(parentID string) *StoreError {
	return &StoreError{Code: ErrParentNotFound, Message: "parent folder not found", ID: parentID}
}

func NewIOError(msg string, err error) *StoreError {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return &StoreError{Code: ErrIOError, Message: msg}
}

// CodeOf extracts the ErrorCode from err. ok is false when err is not a StoreError.
func CodeOf(err error) (code ErrorCode, ok bool) {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code, true
	}
	return 0, false
}

// IsNotFound reports whether err is a StoreError with ErrNotFound.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrNotFound
}

// IsParentNotFound reports whether err is a StoreError with ErrParentNotFound.
func IsParentNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrParentNotFound
}

// IsNotEmpty reports whether err is a StoreError with ErrNotEmpty.
func IsNotEmpty(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrNotEmpty
}

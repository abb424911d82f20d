package blob

import (
	"fmt"
	"path"
	"strings"
)

// ObjectKey joins dir and name into a clean object key without a leading
// slash ("/storex/u1", "a.pdf" -> "storex/u1/a.pdf").
//
// Returns ErrInvalidKey for empty names, names containing a separator and
// paths that would escape the store root.
func ObjectKey(dir, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return "", fmt.Errorf("name %q: %w", name, ErrInvalidKey)
	}

	for _, segment := range strings.Split(dir, "/") {
		if segment == ".." {
			return "", fmt.Errorf("dir %q: %w", dir, ErrInvalidKey)
		}
	}

	key := strings.TrimPrefix(path.Clean("/"+dir+"/"+name), "/")
	if key == "" {
		return "", fmt.Errorf("empty key: %w", ErrInvalidKey)
	}
	return key, nil
}

// ValidateStorageID rejects storage IDs that could escape the store root.
func ValidateStorageID(storageID string) error {
	if storageID == "" || strings.HasPrefix(storageID, "/") {
		return fmt.Errorf("storage id %q: %w", storageID, ErrInvalidKey)
	}
	for _, segment := range strings.Split(storageID, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("storage id %q: %w", storageID, ErrInvalidKey)
		}
	}
	return nil
}

// URLBuilder turns object keys into public URLs.
type URLBuilder struct {
	// BaseURL is prefixed to the object path (e.g. "https://cdn.example.com").
	// Empty produces root-relative URLs ("/storex/u1/a.pdf").
	BaseURL string

	// ThumbnailQuery is appended to image URLs to request a preview
	// rendition (e.g. "tr=w-300,h-300"). Empty disables thumbnails.
	ThumbnailQuery string
}

// Result builds the PutResult for a stored key.
func (b URLBuilder) Result(key, contentType string) *PutResult {
	objectPath := "/" + key
	url := strings.TrimRight(b.BaseURL, "/") + objectPath

	return &PutResult{
		StorageID:    key,
		Path:         objectPath,
		URL:          url,
		ThumbnailURL: b.thumbnail(url, contentType),
	}
}

func (b URLBuilder) thumbnail(url, contentType string) string {
	if b.ThumbnailQuery == "" || !IsImage(contentType) {
		return ""
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + strings.TrimPrefix(b.ThumbnailQuery, "?")
}

// IsImage reports whether contentType is an image/* type.
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

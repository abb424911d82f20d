package drive

import (
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittodrive/pkg/blob"
)

// Config configures the drive service.
type Config struct {
	// RootPrefix is the blob directory every owner's files live under.
	// Uploads land in <RootPrefix>/<owner> or <RootPrefix>/<owner>/folder/<parent>.
	RootPrefix string

	// AllowedMimeTypes is the upload allow-list. Entries are exact types
	// ("application/pdf") or wildcards ("image/*"). Matching ignores case
	// and MIME parameters.
	AllowedMimeTypes []string
}

// DefaultConfig returns the default service configuration: images and PDFs
// stored under /storex.
func DefaultConfig() Config {
	return Config{
		RootPrefix:       "/storex",
		AllowedMimeTypes: []string{"image/*", "application/pdf"},
	}
}

// mimeAllowed reports whether mimeType matches the allow-list.
func (c Config) mimeAllowed(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}

	for _, allowed := range c.AllowedMimeTypes {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if prefix, ok := strings.CutSuffix(allowed, "/*"); ok {
			if strings.HasPrefix(mediaType, prefix+"/") {
				return true
			}
			continue
		}
		if mediaType == allowed {
			return true
		}
	}
	return false
}

// uploadDir derives the blob directory for an upload, namespaced by owner
// and, when present, by parent folder. Both ids must be single path
// segments; anything else fails with blob.ErrInvalidKey.
func (c Config) uploadDir(ownerID, parentID string) (string, error) {
	if !isPathSegment(ownerID) {
		return "", fmt.Errorf("owner id %q: %w", ownerID, blob.ErrInvalidKey)
	}
	root := "/" + strings.Trim(c.RootPrefix, "/")
	if parentID == "" {
		return path.Join(root, ownerID), nil
	}
	if !isPathSegment(parentID) {
		return "", fmt.Errorf("parent id %q: %w", parentID, blob.ErrInvalidKey)
	}
	return path.Join(root, ownerID, "folder", parentID), nil
}

func isPathSegment(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, "/\\")
}

// storedName builds the generated blob name: <id>.<ext>, keeping the
// original extension so the object is served with a sensible suffix.
func storedName(id, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "." {
		ext = ""
	}
	return id + ext
}

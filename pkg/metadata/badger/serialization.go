package badger

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittodrive/pkg/metadata"
)

// fileData is the stored representation of a record.
//
// ChildKey is the record's entry in the children index. Keeping it next to
// the record lets Delete remove the index entry without scanning.
type fileData struct {
	Record   *metadata.FileRecord `json:"record"`
	ChildKey []byte               `json:"child_key"`
}

// encodeFileData serializes a fileData to JSON.
func encodeFileData(fd *fileData) ([]byte, error) {
	data, err := json.Marshal(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// decodeFileData deserializes a fileData from JSON.
func decodeFileData(data []byte) (*fileData, error) {
	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	if fd.Record == nil {
		return nil, fmt.Errorf("failed to decode record: missing record body")
	}
	return &fd, nil
}

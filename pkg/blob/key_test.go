package blob

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		dir, name string
		want      string
		wantErr   bool
	}{
		{dir: "/storex/u1", name: "a.pdf", want: "storex/u1/a.pdf"},
		{dir: "/storex/u1/folder/f1/", name: "b.png", want: "storex/u1/folder/f1/b.png"},
		{dir: "", name: "a.pdf", want: "a.pdf"},
		{dir: "/storex/../etc", name: "passwd", wantErr: true},
		{dir: "/storex", name: "", wantErr: true},
		{dir: "/storex", name: "x/y", wantErr: true},
		{dir: "/storex", name: "..", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ObjectKey(tt.dir, tt.name)
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrInvalidKey), "dir=%q name=%q", tt.dir, tt.name)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidateStorageID(t *testing.T) {
	assert.NoError(t, ValidateStorageID("storex/u1/a.pdf"))
	assert.ErrorIs(t, ValidateStorageID(""), ErrInvalidKey)
	assert.ErrorIs(t, ValidateStorageID("/abs"), ErrInvalidKey)
	assert.ErrorIs(t, ValidateStorageID("storex/../x"), ErrInvalidKey)
	assert.ErrorIs(t, ValidateStorageID("storex//x"), ErrInvalidKey)
}

func TestURLBuilder(t *testing.T) {
	b := URLBuilder{BaseURL: "https://cdn.example.com/", ThumbnailQuery: "tr=w-300,h-300"}

	img := b.Result("storex/u1/a.png", "image/png")
	assert.Equal(t, "storex/u1/a.png", img.StorageID)
	assert.Equal(t, "/storex/u1/a.png", img.Path)
	assert.Equal(t, "https://cdn.example.com/storex/u1/a.png", img.URL)
	assert.Equal(t, "https://cdn.example.com/storex/u1/a.png?tr=w-300,h-300", img.ThumbnailURL)

	pdf := b.Result("storex/u1/a.pdf", "application/pdf")
	assert.Empty(t, pdf.ThumbnailURL)

	noThumbs := URLBuilder{}
	assert.Empty(t, noThumbs.Result("a.png", "image/png").ThumbnailURL)
	assert.Equal(t, "/a.png", noThumbs.Result("a.png", "image/png").URL)
}

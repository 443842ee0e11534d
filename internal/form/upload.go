package form

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	errors "github.com/Laisky/errors/v2"
	"github.com/gabriel-vasile/mimetype"
)

// Upload is a file picked for a multipart field.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// NewUpload wraps in-memory content, sniffing its MIME type.
func NewUpload(name string, data []byte) *Upload {
	return &Upload{
		Name:        filepath.Base(name),
		Size:        int64(len(data)),
		ContentType: mimetype.Detect(data).String(),
		Reader:      bytes.NewReader(data),
	}
}

// OpenUpload reads a file from disk.
func OpenUpload(path string) (*Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat upload %q", path)
	}
	if info.IsDir() {
		return nil, errors.Errorf("upload %q is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read upload %q", path)
	}

	return NewUpload(path, data), nil
}

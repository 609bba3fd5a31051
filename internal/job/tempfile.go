package job

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spherical/ghostview/internal/domain"
)

// TempFile is an engine output that the holder is responsible for deleting.
type TempFile struct {
	Path string
}

// NewTempFile reserves an empty file in dir. ext includes the dot.
func NewTempFile(dir, ext string) (*TempFile, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "ghostview-*"+ext)
	if err != nil {
		return nil, domain.IOError("Failed to create temp file", err)
	}
	if err := f.Close(); err != nil {
		return nil, domain.IOError("Failed to close temp file", err)
	}
	return &TempFile{Path: f.Name()}, nil
}

// Remove deletes the file. Removing a missing file is not an error.
func (t *TempFile) Remove() error {
	if t == nil || t.Path == "" {
		return nil
	}
	if err := os.Remove(t.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SaveAs copies the file to dest. The temp file is kept.
func (t *TempFile) SaveAs(dest string) error {
	if t == nil || t.Path == "" {
		return domain.ValidationError("No file to save", nil)
	}
	if filepath.Clean(dest) == filepath.Clean(t.Path) {
		return nil
	}

	src, err := os.Open(t.Path)
	if err != nil {
		return domain.IOError("Failed to open temp file", err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return domain.IOError(fmt.Sprintf("Failed to create %s", dest), err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return domain.IOError(fmt.Sprintf("Failed to write %s", dest), err)
	}
	if err := dst.Close(); err != nil {
		return domain.IOError(fmt.Sprintf("Failed to write %s", dest), err)
	}
	return nil
}

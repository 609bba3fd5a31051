// Package pdf validates viewer inputs and probes PDF page layout.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/ghostview/internal/domain"
)

// Kind is the document type detected for an input file.
type Kind string

const (
	KindPDF        Kind = "pdf"
	KindPostScript Kind = "postscript"
	KindXPS        Kind = "xps"
	KindPCL        Kind = "pcl"
	KindUnknown    Kind = "unknown"
)

// NeedsDistill reports whether the kind must be converted to PDF before the
// viewer can page through it.
func (k Kind) NeedsDistill() bool {
	return k != KindPDF
}

// Validator checks input files before they reach the engine.
type Validator struct {
	// MaxSize rejects larger inputs. Zero disables the check.
	MaxSize int64
}

// NewValidator creates a validator without a size limit.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateInput checks that path names a readable regular file and detects
// its kind from the leading bytes, falling back to the extension.
func (v *Validator) ValidateInput(path string) (Kind, error) {
	if strings.TrimSpace(path) == "" {
		return KindUnknown, domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return KindUnknown, domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return KindUnknown, domain.IOError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return KindUnknown, domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	if v.MaxSize > 0 && info.Size() > v.MaxSize {
		return KindUnknown, domain.ValidationError(fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), v.MaxSize), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return KindUnknown, domain.IOError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	defer file.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return KindUnknown, domain.IOError(fmt.Sprintf("cannot read file: %s", path), err)
	}

	return DetectKind(head[:n], path), nil
}

// DetectKind sniffs the document type.
func DetectKind(head []byte, name string) Kind {
	switch {
	case bytes.Contains(head, []byte("%PDF-")):
		return KindPDF
	case bytes.HasPrefix(head, []byte("%!")), bytes.HasPrefix(head, []byte{0xc5, 0xd0, 0xd3, 0xc6}):
		return KindPostScript
	case bytes.HasPrefix(head, []byte("\x1b%-12345X")), bytes.HasPrefix(head, []byte("\x1bE")):
		return KindPCL
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		if ext := strings.ToLower(filepath.Ext(name)); ext == ".xps" || ext == ".oxps" {
			return KindXPS
		}
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".ps", ".eps", ".ai":
		return KindPostScript
	case ".xps", ".oxps":
		return KindXPS
	case ".pcl", ".pxl":
		return KindPCL
	}
	return KindUnknown
}

// ValidateRange checks a 1-based inclusive page range against count.
func (v *Validator) ValidateRange(first, last, count int) error {
	if first < 1 || last < first {
		return domain.ValidationError(fmt.Sprintf("invalid page range %d-%d", first, last), nil)
	}
	if count > 0 && last > count {
		return domain.ValidationError(fmt.Sprintf("page %d is past the last page %d", last, count), nil)
	}
	return nil
}

// Package printing spools a document to a printer one page at a time.
package printing

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spherical/ghostview/internal/domain"
)

// Paginator gives access to the pages of a rendered document. Pages are
// numbered from 1.
type Paginator interface {
	PageCount() int
	Page(n int) (io.ReadCloser, error)
}

// ClampRange fits first..last into 1..count. A last of zero or less means
// the final page. It returns 0, 0 for an empty document.
func ClampRange(first, last, count int) (int, int) {
	if count < 1 {
		return 0, 0
	}
	if first < 1 {
		first = 1
	}
	if first > count {
		first = count
	}
	if last < 1 || last > count {
		last = count
	}
	if last < first {
		last = first
	}
	return first, last
}

// DirPaginator serves the regular files of a directory as pages. Files are
// ordered by the page number ending their name, so page-1000 follows
// page-999; names without a number sort after numbered ones, by name.
type DirPaginator struct {
	dir   string
	files []string
}

// NewDirPaginator lists dir.
func NewDirPaginator(dir string) (*DirPaginator, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("Cannot list %s", dir), err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		ni, iok := pageNumber(files[i])
		nj, jok := pageNumber(files[j])
		switch {
		case iok && jok && ni != nj:
			return ni < nj
		case iok != jok:
			return iok
		}
		return files[i] < files[j]
	})
	return &DirPaginator{dir: dir, files: files}, nil
}

// pageNumber parses the digits that end name before its extension.
func pageNumber(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	i := len(base)
	for i > 0 && base[i-1] >= '0' && base[i-1] <= '9' {
		i--
	}
	if i == len(base) {
		return 0, false
	}
	n, err := strconv.Atoi(base[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// PageCount implements Paginator.
func (d *DirPaginator) PageCount() int {
	return len(d.files)
}

// Page implements Paginator.
func (d *DirPaginator) Page(n int) (io.ReadCloser, error) {
	if n < 1 || n > len(d.files) {
		return nil, domain.ValidationError(fmt.Sprintf("Page %d out of range 1-%d", n, len(d.files)), nil)
	}
	f, err := os.Open(filepath.Join(d.dir, d.files[n-1]))
	if err != nil {
		return nil, domain.IOError("Cannot open page", err)
	}
	return f, nil
}

type pageRange struct {
	Paginator
	first, last int
}

// WithPageRange restricts p to first..last, clamped to its page count.
// Page 1 of the result is page first of p.
func WithPageRange(p Paginator, first, last int) Paginator {
	first, last = ClampRange(first, last, p.PageCount())
	return &pageRange{Paginator: p, first: first, last: last}
}

func (r *pageRange) PageCount() int {
	if r.first == 0 {
		return 0
	}
	return r.last - r.first + 1
}

func (r *pageRange) Page(n int) (io.ReadCloser, error) {
	if n < 1 || n > r.PageCount() {
		return nil, domain.ValidationError(fmt.Sprintf("Page %d out of range 1-%d", n, r.PageCount()), nil)
	}
	return r.Paginator.Page(r.first + n - 1)
}

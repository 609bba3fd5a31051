package pdf

import (
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/ghostview/internal/domain"
)

// Probe reads page sizes in points without going through Ghostscript. The
// viewer uses it to lay out placeholders before pages are rendered.
func Probe(path string) ([]domain.PageSize, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("Failed to open %s", path), err)
	}
	defer doc.Close()

	count := doc.NumPage()
	sizes := make([]domain.PageSize, 0, count)
	for n := 0; n < count; n++ {
		// bounds are reported at 72 dpi, i.e. in points
		b, err := doc.Bound(n)
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("Failed to read bounds of page %d", n+1), err)
		}
		sizes = append(sizes, domain.PageSize{
			Page:   n + 1,
			Width:  float64(b.Dx()),
			Height: float64(b.Dy()),
		})
	}
	return sizes, nil
}

package display

import (
	"sync"
)

// Sink receives every completed page. It runs on the engine's goroutine.
type Sink func(Frame)

// Surface implements gsapi.DisplayHandler. It remembers the geometry and the
// engine-owned buffer from Size and, on every page flip, copies the buffer
// into a new Frame before returning to the engine.
type Surface struct {
	mu sync.Mutex

	width  int
	height int
	raster int
	format uint32
	buf    []byte // engine memory, never retained past a callback's frame copy

	currPage int
	zoom     float64
	sink     Sink
}

// NewSurface creates an idle surface.
func NewSurface() *Surface {
	return &Surface{}
}

// Begin prepares a render run. The first page flip is reported as page
// startPage+1.
func (s *Surface) Begin(startPage int, zoom float64, sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currPage = startPage
	s.zoom = zoom
	s.sink = sink
}

// End detaches the sink set by Begin.
func (s *Surface) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = nil
}

// CurrentPage returns the page number of the last flipped page.
func (s *Surface) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currPage
}

func (s *Surface) Open() int     { return 0 }
func (s *Surface) PreClose() int { return 0 }
func (s *Surface) Sync() int     { return 0 }

func (s *Surface) Close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
	return 0
}

func (s *Surface) PreSize(width, height, raster int, format uint32) int {
	return 0
}

func (s *Surface) Size(width, height, raster int, format uint32, buf []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height, s.raster, s.format = width, height, raster, format
	s.buf = buf
	return 0
}

func (s *Surface) Update(x, y, w, h int) int {
	return 0
}

// Page copies the completed page out of the engine buffer.
func (s *Surface) Page(copies int, flush bool) int {
	s.mu.Lock()
	s.currPage++
	frame := Frame{
		Page:   s.currPage,
		Width:  s.width,
		Height: s.height,
		Raster: s.raster,
		Format: s.format,
		Zoom:   s.zoom,
	}
	n := s.raster * s.height
	if n > len(s.buf) {
		n = len(s.buf)
	}
	frame.Pix = make([]byte, n)
	copy(frame.Pix, s.buf[:n])
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink(frame)
	}
	return 0
}

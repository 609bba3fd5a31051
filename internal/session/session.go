// Package session holds the state of one open document: its page count,
// layout, thumbnails and rendered pages, plus the temp files it owns.
package session

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	"github.com/spherical/ghostview/internal/cache"
	"github.com/spherical/ghostview/internal/config"
	"github.com/spherical/ghostview/internal/display"
	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/job"
	"github.com/spherical/ghostview/internal/observability"
	"github.com/spherical/ghostview/internal/pdf"
)

// State is the viewer state of a session.
type State string

const (
	StateNoFile  State = "no_file"
	StateLoading State = "loading"
	StateOpen    State = "open"
)

// Page is one rendered page.
type Page struct {
	Number int
	Zoom   float64
	Image  *image.RGBA
}

// Options control how a document is opened.
type Options struct {
	// Distill converts non-PDF input to a temp PDF first.
	Distill bool
	// SkipThumbnails leaves the thumbnail strip empty.
	SkipThumbnails bool
	// SkipProbe skips reading page sizes.
	SkipProbe bool
}

// Config holds zoom bounds and defaults.
type Config struct {
	Zoom      float64
	ZoomMin   float64
	ZoomMax   float64
	ThumbZoom float64
	// ThumbWidth is the pixel width every thumbnail is scaled to.
	ThumbWidth int
	Antialias  bool
}

// ConfigFrom maps the render section of the application config.
func ConfigFrom(rc config.RenderConfig) Config {
	return Config{
		Zoom:       rc.Zoom,
		ZoomMin:    rc.ZoomMin,
		ZoomMax:    rc.ZoomMax,
		ThumbZoom:  rc.ThumbZoom,
		ThumbWidth: rc.ThumbWidth,
		Antialias:  rc.Antialias,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithCache enables the rendered page cache.
func WithCache(c *cache.RenderCache) Option {
	return func(s *Session) { s.cache = c }
}

// WithLogger sets the session logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithProgress receives progress of every job the session runs.
func WithProgress(fn func(domain.Progress)) Option {
	return func(s *Session) { s.onProgress = fn }
}

// Session is the document controller. Methods block until the underlying
// job finishes and must not be called from the runner's dispatcher.
type Session struct {
	runner     *job.Runner
	cfg        Config
	cache      *cache.RenderCache
	validator  *pdf.Validator
	logger     *observability.Logger
	onProgress func(domain.Progress)

	mu        sync.Mutex
	state     State
	origFile  string
	viewFile  string
	kind      pdf.Kind
	distilled *job.TempFile
	temps     []*job.TempFile
	numPages  int
	sizes     []domain.PageSize
	zoom      float64
	antialias bool
	pages     map[int]Page
	thumbs    map[int]Page

	// versions remembers the last opened version of every path, so cached
	// pages of an edited file can be dropped.
	versions map[string]cache.PageKey
}

// New creates a session without a document.
func New(runner *job.Runner, cfg Config, opts ...Option) *Session {
	if cfg.ZoomMin <= 0 {
		cfg.ZoomMin = 0.25
	}
	if cfg.ZoomMax < cfg.ZoomMin {
		cfg.ZoomMax = 4
	}
	if cfg.ThumbZoom <= 0 {
		cfg.ThumbZoom = 0.1
	}
	if cfg.ThumbWidth <= 0 {
		cfg.ThumbWidth = 96
	}
	if cfg.Zoom <= 0 {
		cfg.Zoom = 1
	}
	s := &Session{
		runner:    runner,
		cfg:       cfg,
		validator: pdf.NewValidator(),
		logger:    observability.Nop(),
		state:     StateNoFile,
		zoom:      clamp(cfg.Zoom, cfg.ZoomMin, cfg.ZoomMax),
		antialias: cfg.Antialias,
		pages:     map[int]Page{},
		thumbs:    map[int]Page{},
		versions:  map[string]cache.PageKey{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads path. An already open document is closed first.
func (s *Session) Open(ctx context.Context, path string, opts Options) error {
	if err := s.Close(); err != nil {
		return err
	}

	kind, err := s.validator.ValidateInput(path)
	if err != nil {
		return err
	}
	s.forgetStaleVersion(ctx, path)

	s.mu.Lock()
	s.state = StateLoading
	s.origFile = path
	s.kind = kind
	s.mu.Unlock()

	if err := s.load(ctx, path, kind, opts); err != nil {
		s.Close()
		return err
	}

	s.mu.Lock()
	s.state = StateOpen
	s.mu.Unlock()
	return nil
}

// forgetStaleVersion drops the cached pages of an earlier version of path.
func (s *Session) forgetStaleVersion(ctx context.Context, path string) {
	if !s.cache.Enabled() {
		return
	}
	key, err := cache.KeyFor(path, 0, 0, false)
	if err != nil {
		return
	}
	s.mu.Lock()
	prev, seen := s.versions[path]
	s.versions[path] = key
	s.mu.Unlock()

	if seen && !prev.SameDocument(key) {
		if err := s.cache.Invalidate(ctx, prev); err != nil {
			s.logger.Warn().Err(err).Str("file", path).Msg("Failed to drop cached pages")
			return
		}
		s.logger.Debug().Str("file", path).Msg("File changed, cached pages dropped")
	}
}

func (s *Session) load(ctx context.Context, path string, kind pdf.Kind, opts Options) error {
	log := s.logger.With().Str("file", path).Str("kind", string(kind)).Logger()
	view := path

	if kind.NeedsDistill() {
		if !opts.Distill {
			return domain.ValidationError(fmt.Sprintf("%s is %s; open it with distill enabled", path, kind), nil)
		}
		log.Info().Msg("Distilling to PDF")
		res, err := s.await(ctx, func(cb job.Callbacks) (string, error) {
			return s.runner.Distill(ctx, path, cb)
		}, nil)
		if err != nil {
			return err
		}
		tmp := &job.TempFile{Path: res.OutputFile}
		s.mu.Lock()
		s.distilled = tmp
		s.temps = append(s.temps, tmp)
		s.mu.Unlock()
		view = tmp.Path
	}

	n, err := s.runner.PageCount(ctx, view)
	if err != nil {
		return err
	}
	if n < 1 {
		return domain.ValidationError(fmt.Sprintf("%s has no pages", path), nil)
	}

	s.mu.Lock()
	s.viewFile = view
	s.numPages = n
	s.mu.Unlock()
	log.Info().Int("pages", n).Msg("Document opened")

	if !opts.SkipProbe {
		sizes, err := pdf.Probe(view)
		if err != nil {
			log.Warn().Err(err).Msg("Page size probe failed")
		} else {
			s.mu.Lock()
			s.sizes = sizes
			s.mu.Unlock()
		}
	}

	if opts.SkipThumbnails {
		return nil
	}
	return s.renderThumbnails(ctx, view, n)
}

func (s *Session) renderThumbnails(ctx context.Context, view string, n int) error {
	var mu sync.Mutex
	thumbs := map[int]Page{}
	var convErr error

	_, err := s.await(ctx, func(cb job.Callbacks) (string, error) {
		return s.runner.RenderThumbnails(ctx, view, n, s.cfg.ThumbZoom, cb)
	}, func(f display.Frame) {
		img, err := f.Image()
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			convErr = err
			return
		}
		thumbs[f.Page] = Page{Number: f.Page, Zoom: f.Zoom, Image: display.Thumbnail(img, s.cfg.ThumbWidth)}
	})
	if err != nil {
		return err
	}
	if convErr != nil {
		return domain.NewError(domain.ErrorTypeEngine, "Unusable thumbnail raster", convErr)
	}

	s.mu.Lock()
	s.thumbs = thumbs
	s.mu.Unlock()
	return nil
}

// RenderPages returns pages first..last at the current zoom, rendering the
// ones that are neither held by the session nor cached.
func (s *Session) RenderPages(ctx context.Context, first, last int) ([]Page, error) {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return nil, domain.ValidationError("No document open", nil)
	}
	view, zoom, aa, count := s.viewFile, s.zoom, s.antialias, s.numPages
	s.mu.Unlock()

	if err := s.validator.ValidateRange(first, last, count); err != nil {
		return nil, err
	}

	resolution := display.Resolution(zoom)
	missing := s.collectKnown(ctx, view, first, last, zoom, resolution, aa)

	if len(missing) > 0 {
		lo, hi := missing[0], missing[len(missing)-1]
		if err := s.renderRange(ctx, view, lo, hi, zoom, resolution, aa); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Page, 0, last-first+1)
	for n := first; n <= last; n++ {
		if p, ok := s.pages[n]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// collectKnown fills s.pages from the cache and returns page numbers that
// still need rendering.
func (s *Session) collectKnown(ctx context.Context, view string, first, last int, zoom float64, resolution int, aa bool) []int {
	var missing []int
	for n := first; n <= last; n++ {
		s.mu.Lock()
		p, ok := s.pages[n]
		s.mu.Unlock()
		if ok && p.Zoom == zoom {
			continue
		}

		if key, err := cache.KeyFor(view, n, resolution, aa); err == nil {
			if img, err := s.cache.Get(ctx, key); err == nil {
				s.mu.Lock()
				s.pages[n] = Page{Number: n, Zoom: zoom, Image: img}
				s.mu.Unlock()
				continue
			}
		}
		missing = append(missing, n)
	}
	return missing
}

func (s *Session) renderRange(ctx context.Context, view string, first, last int, zoom float64, resolution int, aa bool) error {
	var mu sync.Mutex
	var convErr error

	_, err := s.await(ctx, func(cb job.Callbacks) (string, error) {
		return s.runner.RenderPages(ctx, view, first, last, zoom, aa, cb)
	}, func(f display.Frame) {
		img, err := f.Image()
		if err != nil {
			mu.Lock()
			convErr = err
			mu.Unlock()
			return
		}
		if key, err := cache.KeyFor(view, f.Page, resolution, aa); err == nil {
			s.cache.Put(context.WithoutCancel(ctx), key, img)
		}
		s.mu.Lock()
		s.pages[f.Page] = Page{Number: f.Page, Zoom: zoom, Image: img}
		s.mu.Unlock()
	})
	if err != nil {
		return err
	}
	if convErr != nil {
		return domain.NewError(domain.ErrorTypeEngine, "Unusable page raster", convErr)
	}
	return nil
}

// await runs a job to completion with the session's progress listener.
func (s *Session) await(ctx context.Context, start func(job.Callbacks) (string, error), onPage func(display.Frame)) (domain.Result, error) {
	return s.runner.Await(ctx, job.Callbacks{OnPage: onPage, OnProgress: s.onProgress}, start)
}

// SetZoom clamps z to the configured bounds and returns the zoom in effect.
// Pages rendered at another zoom are dropped.
func (s *Session) SetZoom(z float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	z = clamp(z, s.cfg.ZoomMin, s.cfg.ZoomMax)
	if z != s.zoom {
		s.zoom = z
		s.pages = map[int]Page{}
	}
	return s.zoom
}

// Zoom returns the current zoom.
func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// SetAntialias toggles text and graphics antialiasing for later renders.
func (s *Session) SetAntialias(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on != s.antialias {
		s.antialias = on
		s.pages = map[int]Page{}
	}
}

// SaveDistilled copies the distilled PDF to dest.
func (s *Session) SaveDistilled(dest string) error {
	s.mu.Lock()
	tmp := s.distilled
	s.mu.Unlock()
	if tmp == nil {
		return domain.ValidationError("Document was not distilled", nil)
	}
	return tmp.SaveAs(dest)
}

// Pages returns the pages rendered at the current zoom, in page order.
func (s *Session) Pages() []Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedPages(s.pages)
}

// Thumbnails returns the thumbnail strip in page order.
func (s *Session) Thumbnails() []Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedPages(s.thumbs)
}

// PageCount returns the number of pages of the open document.
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numPages
}

// PageSizes returns the probed page sizes, if the probe succeeded.
func (s *Session) PageSizes() []domain.PageSize {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PageSize(nil), s.sizes...)
}

// State returns the viewer state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// File returns the path the user opened and the path actually rendered.
func (s *Session) File() (orig, view string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origFile, s.viewFile
}

// Close tears down the display engine, deletes temp files and forgets the
// document. Closing a session without a document is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateNoFile && len(s.temps) == 0 {
		s.mu.Unlock()
		return nil
	}
	temps := s.temps
	distilled := s.distilled
	s.temps = nil
	s.distilled = nil
	s.state = StateNoFile
	s.origFile, s.viewFile = "", ""
	s.kind = ""
	s.numPages = 0
	s.sizes = nil
	s.pages = map[int]Page{}
	s.thumbs = map[int]Page{}
	s.mu.Unlock()

	s.runner.Close()

	// pages of a distilled temp file can never be requested again
	if distilled != nil && s.cache.Enabled() {
		if key, err := cache.KeyFor(distilled.Path, 0, 0, false); err == nil {
			if err := s.cache.Invalidate(context.Background(), key); err != nil {
				s.logger.Warn().Err(err).Str("path", distilled.Path).Msg("Failed to drop cached pages")
			}
		}
	}

	var firstErr error
	for _, t := range temps {
		if err := t.Remove(); err != nil {
			s.logger.Warn().Err(err).Str("path", t.Path).Msg("Failed to remove temp file")
			if firstErr == nil {
				firstErr = domain.IOError("Failed to remove temp file", err)
			}
		}
	}
	return firstErr
}

func sortedPages(m map[int]Page) []Page {
	out := make([]Page, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Number < out[b].Number })
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

package printing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/job"
	"github.com/spherical/ghostview/internal/observability"
)

// DefaultDevice renders the intermediate pages.
const DefaultDevice = "pdfwrite"

// Stage names the phase a progress report belongs to.
type Stage string

const (
	StageRender Stage = "render"
	StageSpool  Stage = "spool"
)

// Progress reports pipeline progress. Percent restarts at each stage.
type Progress struct {
	Stage   Stage
	Percent int
	Page    int
	Pages   int
}

// Request describes one print job.
type Request struct {
	Title     string
	FirstPage int
	LastPage  int
	// Device overrides the pipeline's intermediate device.
	Device     string
	OnProgress func(Progress)
}

// Report summarises a finished print job.
type Report struct {
	JobID    string
	Pages    []int
	Duration time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDevice sets the default intermediate device.
func WithDevice(device string) Option {
	return func(p *Pipeline) {
		if device != "" {
			p.device = device
		}
	}
}

// WithTempDir sets where intermediate pages are written.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *observability.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline renders a document into per-page files and spools the requested
// range. Intermediate files never outlive Print.
type Pipeline struct {
	runner  *job.Runner
	spooler Spooler
	device  string
	tempDir string
	logger  *observability.Logger
}

// NewPipeline creates a pipeline that renders with runner and prints
// through spooler.
func NewPipeline(runner *job.Runner, spooler Spooler, opts ...Option) *Pipeline {
	p := &Pipeline{
		runner:  runner,
		spooler: spooler,
		device:  DefaultDevice,
		logger:  observability.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Print renders in and spools pages FirstPage..LastPage.
func (p *Pipeline) Print(ctx context.Context, in string, req Request) (*Report, error) {
	start := time.Now()
	device := req.Device
	if device == "" {
		device = p.device
	}
	if req.Title == "" {
		req.Title = filepath.Base(in)
	}
	report := func(pr Progress) {
		if req.OnProgress != nil {
			req.OnProgress(pr)
		}
	}

	dir, err := os.MkdirTemp(p.tempDir, "ghostview-print-*")
	if err != nil {
		return nil, domain.IOError("Cannot create print directory", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			p.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to remove print pages")
		}
	}()

	ext := job.OutputExt(device)
	res, err := p.runner.Await(ctx, job.Callbacks{
		OnProgress: func(pr domain.Progress) {
			report(Progress{Stage: StageRender, Percent: pr.Percent, Page: pr.Page})
		},
	}, func(cb job.Callbacks) (string, error) {
		return p.runner.CreateOutput(ctx, in, job.Export{
			Device:     device,
			OutputFile: filepath.Join(dir, "page-%03d"+ext),
		}, cb)
	})
	if err != nil {
		return nil, fmt.Errorf("render pages for printing: %w", err)
	}
	log := p.logger.WithJob(res.JobID, "print")

	all, err := NewDirPaginator(dir)
	if err != nil {
		return nil, err
	}
	if all.PageCount() == 0 {
		return nil, domain.EngineError(fmt.Sprintf("%s produced no pages", device), res.ReturnCode)
	}

	first, _ := ClampRange(req.FirstPage, req.LastPage, all.PageCount())
	pages := WithPageRange(all, req.FirstPage, req.LastPage)
	total := pages.PageCount()
	out := &Report{JobID: res.JobID}

	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return out, domain.CancelledError("Print cancelled", err)
		}
		page := first + n - 1
		if err := p.spool(ctx, pages, n, Sheet{Title: req.Title, Page: page, Ext: ext}); err != nil {
			return out, err
		}
		out.Pages = append(out.Pages, page)
		report(Progress{Stage: StageSpool, Percent: n * 100 / total, Page: page, Pages: total})
	}

	out.Duration = time.Since(start)
	log.Info().
		Str("file", in).
		Int("pages", total).
		Dur("duration", out.Duration).
		Msg("Print job spooled")
	return out, nil
}

func (p *Pipeline) spool(ctx context.Context, pages Paginator, n int, sheet Sheet) error {
	rc, err := pages.Page(n)
	if err != nil {
		return err
	}
	defer rc.Close()
	return p.spooler.Spool(ctx, sheet, rc)
}

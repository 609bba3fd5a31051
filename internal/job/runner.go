// Package job runs Ghostscript work off the caller's goroutine, one job at a
// time, and reports progress and completion through a Dispatcher.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/spherical/ghostview/internal/display"
	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/gsapi"
	"github.com/spherical/ghostview/internal/observability"
)

// Callbacks receive job events. Every callback is invoked through the
// runner's Dispatcher. Nil callbacks are skipped.
type Callbacks struct {
	OnProgress func(domain.Progress)
	OnOutput   func(text string, stderr bool)
	OnPage     func(display.Frame)
	OnComplete func(domain.Result)
}

// Config holds runner settings.
type Config struct {
	ReadBufferSize int
	TempDir        string
	// Resolution is the default export dpi.
	Resolution int
}

// Option configures a Runner.
type Option func(*Runner)

// WithDispatcher sets where callbacks run. Defaults to InlineDispatcher.
func WithDispatcher(d domain.Dispatcher) Option {
	return func(r *Runner) { r.dispatcher = d }
}

// WithLogger sets the runner's logger.
func WithLogger(l *observability.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithRecorder persists every finished job.
func WithRecorder(rec domain.Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// Runner owns the engine. At most one job is in flight; starting another
// while busy fails with domain.ErrBusy.
type Runner struct {
	lib        gsapi.Library
	cfg        Config
	dispatcher domain.Dispatcher
	logger     *observability.Logger
	recorder   domain.Recorder

	busy atomic.Bool

	mu       sync.Mutex
	handle   gsapi.Instance
	current  string // id of the in-flight job
	cancel   context.CancelFunc
	done     chan struct{}
	unusable error

	display *DisplayEngine
}

// NewRunner creates a runner over lib.
func NewRunner(lib gsapi.Library, cfg Config, opts ...Option) *Runner {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 32 * 1024
	}
	if cfg.Resolution <= 0 {
		cfg.Resolution = 300
	}
	r := &Runner{
		lib:        lib,
		cfg:        cfg,
		dispatcher: InlineDispatcher{},
		logger:     observability.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.display = newDisplayEngine(lib, r.logger.WithOperation("display"))
	return r
}

// Revision reports the loaded library's revision.
func (r *Runner) Revision() (gsapi.Revision, error) {
	rev, err := r.lib.Revision()
	if err != nil {
		return rev, r.classify(err)
	}
	return rev, nil
}

// Busy reports whether a job is in flight.
func (r *Runner) Busy() bool {
	return r.busy.Load()
}

// State reports the runner state.
func (r *Runner) State() domain.RunnerState {
	r.mu.Lock()
	unusable := r.unusable
	r.mu.Unlock()
	switch {
	case unusable != nil:
		return domain.StateError
	case r.busy.Load():
		return domain.StateBusy
	default:
		return domain.StateReady
	}
}

// Handle returns the job instance currently alive, or nil. The display
// engine's instance is not included.
func (r *Runner) Handle() gsapi.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

// Start launches p on a new goroutine and returns its job id.
func (r *Runner) Start(ctx context.Context, p *domain.Params, cb Callbacks) (string, error) {
	if err := r.checkUsable(); err != nil {
		return "", err
	}
	if err := validate(p); err != nil {
		return "", err
	}
	if !r.busy.CompareAndSwap(false, true) {
		return "", domain.ErrBusy
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	jobCtx, cancel := context.WithCancel(ctx)
	jobCtx = observability.ContextWithJobID(jobCtx, p.ID)
	done := make(chan struct{})

	r.mu.Lock()
	r.current = p.ID
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	j := r.newJob(jobCtx, p, cb)
	j.cancel = cancel
	go r.run(jobCtx, j, done)
	return p.ID, nil
}

// Distill converts in to PDF by streaming it through pdfwrite.
func (r *Runner) Distill(ctx context.Context, in string, cb Callbacks) (string, error) {
	return r.Start(ctx, &domain.Params{Task: domain.TaskDistill, InputFile: in}, cb)
}

// CreateOutput renders in with an arbitrary output device.
func (r *Runner) CreateOutput(ctx context.Context, in string, e Export, cb Callbacks) (string, error) {
	return r.Start(ctx, &domain.Params{
		Task:         domain.TaskCreateOutput,
		InputFile:    in,
		OutputFile:   e.OutputFile,
		Device:       e.Device,
		FirstPage:    e.FirstPage,
		LastPage:     e.LastPage,
		Resolution:   e.Resolution,
		WidthPoints:  e.WidthPoints,
		HeightPoints: e.HeightPoints,
		FitPage:      e.FitPage,
	}, cb)
}

// RenderThumbnails renders every page of in at thumbnail zoom. numPages may
// be zero, in which case it is counted first.
func (r *Runner) RenderThumbnails(ctx context.Context, in string, numPages int, zoom float64, cb Callbacks) (string, error) {
	return r.Start(ctx, &domain.Params{
		Task:      domain.TaskRenderThumbnails,
		InputFile: in,
		FirstPage: 1,
		LastPage:  numPages,
		NumPages:  numPages,
		Zoom:      zoom,
		Antialias: true,
	}, cb)
}

// RenderPages renders pages first..last of in through the display device.
func (r *Runner) RenderPages(ctx context.Context, in string, first, last int, zoom float64, antialias bool, cb Callbacks) (string, error) {
	return r.Start(ctx, &domain.Params{
		Task:      domain.TaskRenderPages,
		InputFile: in,
		FirstPage: first,
		LastPage:  last,
		Zoom:      zoom,
		Antialias: antialias,
	}, cb)
}

// PageCount asks the engine for the number of pages in a PDF. It blocks and
// returns -1 on any failure.
func (r *Runner) PageCount(ctx context.Context, path string) (int, error) {
	if err := r.checkUsable(); err != nil {
		return -1, err
	}
	if _, err := os.Stat(path); err != nil {
		return -1, domain.IOError(fmt.Sprintf("Cannot read %s", path), err)
	}
	p := &domain.Params{ID: uuid.NewString(), Task: domain.TaskPageCount, InputFile: path}
	release, err := r.acquire(p.ID)
	if err != nil {
		return -1, err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return -1, domain.CancelledError("Page count cancelled", err)
	}

	j := &job{params: p, log: r.logger.WithJob(p.ID, string(p.Task))}
	out := &stdio{keepAll: true}
	if _, err := r.runArgs(j, out, pageCountArgs(path)); err != nil {
		return -1, err
	}

	n, ok := parsePageCount(out.collected())
	if !ok {
		return -1, domain.EngineError("No page count in engine output", p.ReturnCode)
	}
	return n, nil
}

// Exec runs an arbitrary argument vector synchronously on a fresh instance.
// args[0] is the program name. Output is passed straight to out.
func (r *Runner) Exec(ctx context.Context, args []string, out func(text string, stderr bool)) (int, error) {
	if err := r.checkUsable(); err != nil {
		return 0, err
	}
	if len(args) == 0 {
		return 0, domain.ValidationError("No arguments", nil)
	}
	p := &domain.Params{ID: uuid.NewString(), Task: domain.TaskGeneric, Args: args}
	release, err := r.acquire(p.ID)
	if err != nil {
		return 0, err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return 0, domain.CancelledError("Command cancelled", err)
	}

	j := &job{params: p, log: r.logger.WithJob(p.ID, string(p.Task))}
	return r.runArgs(j, &stdio{onText: out}, args)
}

// Await starts a job through start with cb's hooks and blocks until it
// completes. Cancelling ctx cancels the job. A job that did not succeed is
// returned together with its error.
func (r *Runner) Await(ctx context.Context, cb Callbacks, start func(Callbacks) (string, error)) (domain.Result, error) {
	done := make(chan domain.Result, 1)
	onComplete := cb.OnComplete
	cb.OnComplete = func(res domain.Result) {
		if onComplete != nil {
			onComplete(res)
		}
		done <- res
	}
	id, err := start(cb)
	if err != nil {
		return domain.Result{}, err
	}

	var res domain.Result
	select {
	case res = <-done:
	case <-ctx.Done():
		r.CancelJob(id)
		res = <-done
	}
	if !res.OK() {
		return res, res.Err
	}
	return res, nil
}

// Cancel requests cancellation of the in-flight job. Streaming jobs stop at
// the next chunk boundary; other jobs observe it before the engine is
// entered.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// CancelJob cancels the in-flight job only if its id is id. It reports
// whether a cancellation was requested.
func (r *Runner) CancelJob(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" || id != r.current || r.cancel == nil {
		return false
	}
	r.cancel()
	return true
}

// acquire marks the runner busy for a synchronous call on the caller's
// goroutine. release frees it and wakes Wait.
func (r *Runner) acquire(id string) (release func(), err error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrBusy
	}
	done := make(chan struct{})
	r.mu.Lock()
	r.current = id
	r.done = done
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.current = ""
		r.mu.Unlock()
		r.busy.Store(false)
		close(done)
	}, nil
}

// Wait blocks until the in-flight job, if any, has finished its teardown.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close cancels any running job, waits for it and tears down the display
// engine. Synchronous calls are not cancelled; Close waits for them.
func (r *Runner) Close() {
	for !r.busy.CompareAndSwap(false, true) {
		r.Cancel()
		r.Wait()
		runtime.Gosched()
	}
	defer r.busy.Store(false)
	r.display.Close()
}

func (r *Runner) checkUsable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unusable
}

// classify turns a library error into a domain error and disables the
// runner when the engine itself is unavailable.
func (r *Runner) classify(err error) error {
	if errors.Is(err, gsapi.ErrUnavailable) {
		unusable := domain.EngineUnavailableError("Ghostscript library unavailable", err)
		r.mu.Lock()
		r.unusable = unusable
		r.mu.Unlock()
		r.logger.Error().Err(err).Msg("Engine unavailable, runner disabled")
		return unusable
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	return domain.NewError(domain.ErrorTypeEngine, "Engine call failed", err)
}

func (r *Runner) setHandle(inst gsapi.Instance) {
	r.mu.Lock()
	r.handle = inst
	r.mu.Unlock()
}

// destroyHandle tears down the job instance and clears the handle.
func (r *Runner) destroyHandle() int {
	r.mu.Lock()
	inst := r.handle
	r.handle = nil
	r.mu.Unlock()
	if inst == nil {
		return 0
	}
	return gsapi.Destroy(inst)
}

func validate(p *domain.Params) error {
	if p == nil {
		return domain.ValidationError("Missing job parameters", nil)
	}
	switch p.Task {
	case domain.TaskGeneric:
		if len(p.Args) == 0 {
			return domain.ValidationError("Generic job needs arguments", nil)
		}
		return nil
	case domain.TaskDistill, domain.TaskCreateOutput, domain.TaskPageCount,
		domain.TaskRenderThumbnails, domain.TaskRenderPages:
	default:
		return domain.ValidationError(fmt.Sprintf("Unknown task %q", p.Task), nil)
	}

	if p.InputFile == "" {
		return domain.ValidationError("Input file is required", nil)
	}
	if _, err := os.Stat(p.InputFile); err != nil {
		return domain.IOError(fmt.Sprintf("Cannot read %s", p.InputFile), err)
	}
	if p.Task == domain.TaskRenderPages && (p.FirstPage < 1 || p.LastPage < p.FirstPage) {
		return domain.ValidationError(fmt.Sprintf("Invalid page range %d-%d", p.FirstPage, p.LastPage), nil)
	}
	return nil
}

package job

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spherical/ghostview/internal/display"
	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/gsapi"
	"github.com/spherical/ghostview/internal/observability"
)

// job is the runner-side state of one Start call.
type job struct {
	params  *domain.Params
	cb      Callbacks
	temp    *TempFile
	log     *observability.Logger
	cancel  context.CancelFunc
	started time.Time

	lastPercent int
}

func (r *Runner) newJob(ctx context.Context, p *domain.Params, cb Callbacks) *job {
	return &job{
		params:      p,
		cb:          cb,
		log:         r.logger.WithContext(ctx).With().Str("task", string(p.Task)).Logger(),
		started:     time.Now(),
		lastPercent: -1,
	}
}

// run executes j and performs the completion sequence: teardown, temp
// cleanup, recording, busy release and finally the completion callback.
func (r *Runner) run(ctx context.Context, j *job, done chan struct{}) {
	j.log.Info().Str("input", j.params.InputFile).Msg("Job started")

	err := r.safeExecute(ctx, j)

	// Teardown
	if code := r.destroyHandle(); err == nil && gsapi.Failed(code) {
		err = domain.EngineError("Engine exit failed", code)
	}

	result := r.result(j, err)

	if !result.OK() && j.temp != nil {
		if rmErr := j.temp.Remove(); rmErr != nil {
			j.log.Warn().Err(rmErr).Str("path", j.temp.Path).Msg("Failed to remove temp output")
		}
		result.OutputFile = ""
	}

	if r.recorder != nil {
		if recErr := r.recorder.Record(context.WithoutCancel(ctx), result); recErr != nil {
			j.log.Warn().Err(recErr).Msg("Failed to record job")
		}
	}

	logEvt := j.log.Info()
	if !result.OK() {
		logEvt = j.log.Warn().Err(result.Err)
	}
	logEvt.Str("status", string(result.Status)).
		Int("code", result.ReturnCode).
		Dur("duration", result.Duration).
		Msg("Job finished")

	r.mu.Lock()
	r.current = ""
	r.cancel = nil
	r.mu.Unlock()
	j.cancel()
	r.busy.Store(false)
	close(done)

	if j.cb.OnComplete != nil {
		r.dispatcher.Dispatch(func() { j.cb.OnComplete(result) })
	}
}

func (r *Runner) safeExecute(ctx context.Context, j *job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			j.log.Error().Str("panic", fmt.Sprint(rec)).Msg("Job panicked")
			err = domain.NewError(domain.ErrorTypeEngine, fmt.Sprintf("Job panicked: %v", rec), nil)
		}
	}()

	if err := ctx.Err(); err != nil {
		return domain.CancelledError("Job cancelled before start", err)
	}

	switch j.params.Task {
	case domain.TaskPageCount:
		return r.executePageCount(j)
	case domain.TaskDistill:
		return r.executeDistill(ctx, j)
	case domain.TaskCreateOutput:
		return r.executeExport(j)
	case domain.TaskRenderThumbnails, domain.TaskRenderPages:
		return r.executeRender(ctx, j)
	case domain.TaskGeneric:
		_, err := r.runArgs(j, r.jobStdio(j), j.params.Args)
		return err
	}
	return domain.ValidationError(fmt.Sprintf("Unknown task %q", j.params.Task), nil)
}

func (r *Runner) result(j *job, err error) domain.Result {
	p := j.params
	res := domain.Result{
		JobID:      p.ID,
		Task:       p.Task,
		Status:     domain.StatusOK,
		ReturnCode: p.ReturnCode,
		InputFile:  p.InputFile,
		OutputFile: p.OutputFile,
		NumPages:   p.NumPages,
		Duration:   time.Since(j.started),
		FinishedAt: time.Now(),
	}
	if err != nil {
		res.Err = err
		res.ErrorType = domain.TypeOf(err)
		if res.ErrorType == "" {
			res.ErrorType = domain.ErrorTypeEngine
		}
		res.Status = domain.StatusFailed
		if res.ErrorType == domain.ErrorTypeCancelled {
			res.Status = domain.StatusCancelled
		}
	}
	p.Status = res.Status
	return res
}

// jobStdio forwards engine text to OnOutput and turns "Page N" lines into
// progress.
func (r *Runner) jobStdio(j *job) *stdio {
	s := &stdio{}
	if j.cb.OnOutput != nil {
		s.onText = func(text string, stderr bool) {
			r.dispatcher.Dispatch(func() { j.cb.OnOutput(text, stderr) })
		}
	}
	s.onLine = func(line string) {
		page, ok := parsePageLine(line)
		if !ok {
			return
		}
		p := j.params
		p.CurrPage = page
		first, last := p.FirstPage, p.LastPage
		if first < 1 {
			first = 1
		}
		if last < first {
			// unknown upper bound: report the page without a percentage
			r.progress(j, max(j.lastPercent, 0), page)
			return
		}
		r.progress(j, 100*(page-first+1)/(last-first+1), page)
	}
	return s
}

func (r *Runner) progress(j *job, percent, page int) {
	if percent > 100 {
		percent = 100
	}
	if percent < j.lastPercent {
		percent = j.lastPercent
	}
	j.lastPercent = percent
	if j.cb.OnProgress == nil {
		return
	}
	evt := domain.Progress{JobID: j.params.ID, Task: j.params.Task, Percent: percent, Page: page}
	r.dispatcher.Dispatch(func() { j.cb.OnProgress(evt) })
}

// newInstance creates the job instance, installs stdio and UTF-8 argument
// encoding, and publishes it as the runner's handle.
func (r *Runner) newInstance(out gsapi.StdioHandler) (gsapi.Instance, error) {
	inst, err := r.lib.NewInstance()
	if err != nil {
		return nil, r.classify(err)
	}
	r.setHandle(inst)

	if code := inst.SetStdio(out); gsapi.Failed(code) {
		return nil, domain.EngineError("set_stdio failed", code)
	}
	if code := inst.SetArgEncoding(gsapi.ArgEncodingUTF8); gsapi.Failed(code) {
		return nil, domain.EngineError("set_arg_encoding failed", code)
	}
	return inst, nil
}

// runArgs is the argv strategy: one instance, one InitWithArgs, teardown.
func (r *Runner) runArgs(j *job, out *stdio, args []string) (int, error) {
	defer r.destroyHandle()

	inst, err := r.newInstance(out)
	if err != nil {
		return 0, err
	}

	if out.onText != nil {
		out.onText(commandLine(args), false)
	}
	j.log.Debug().Strs("args", args).Msg("Command Line")

	code := inst.InitWithArgs(args)
	if code == 0 || code == gsapi.Quit {
		code = r.destroyHandle()
	}
	j.params.ReturnCode = code

	if gsapi.Failed(code) {
		return code, domain.EngineError(fmt.Sprintf("%s failed", strings.Join(args, " ")), code)
	}
	return code, nil
}

func (r *Runner) executePageCount(j *job) error {
	out := r.jobStdio(j)
	out.keepAll = true
	if _, err := r.runArgs(j, out, pageCountArgs(j.params.InputFile)); err != nil {
		return err
	}
	n, ok := parsePageCount(out.collected())
	if !ok {
		j.params.NumPages = -1
		return domain.EngineError("No page count in engine output", j.params.ReturnCode)
	}
	j.params.NumPages = n
	return nil
}

func (r *Runner) ensureOutput(j *job, ext string) error {
	if j.params.OutputFile != "" {
		return nil
	}
	tmp, err := NewTempFile(r.cfg.TempDir, ext)
	if err != nil {
		return err
	}
	j.temp = tmp
	j.params.OutputFile = tmp.Path
	return nil
}

func (r *Runner) executeExport(j *job) error {
	p := j.params
	if p.Device == "" {
		p.Device = DefaultExportDevice
	}
	if p.Resolution <= 0 {
		p.Resolution = r.cfg.Resolution
	}
	if err := r.ensureOutput(j, OutputExt(p.Device)); err != nil {
		return err
	}

	_, err := r.runArgs(j, r.jobStdio(j), exportArgs(p.InputFile, Export{
		Device:       p.Device,
		OutputFile:   p.OutputFile,
		FirstPage:    p.FirstPage,
		LastPage:     p.LastPage,
		Resolution:   p.Resolution,
		WidthPoints:  p.WidthPoints,
		HeightPoints: p.HeightPoints,
		FitPage:      p.FitPage,
	}))
	if err == nil && j.lastPercent < 100 {
		r.progress(j, 100, p.CurrPage)
	}
	return err
}

// executeDistill is the streaming strategy: the input is fed to the
// interpreter in chunks so progress and cancellation can be observed.
func (r *Runner) executeDistill(ctx context.Context, j *job) error {
	p := j.params

	f, err := os.Open(p.InputFile)
	if err != nil {
		return domain.IOError(fmt.Sprintf("Cannot open %s", p.InputFile), err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return domain.IOError(fmt.Sprintf("Cannot stat %s", p.InputFile), err)
	}
	total := st.Size()

	if err := r.ensureOutput(j, ".pdf"); err != nil {
		return err
	}

	out := r.jobStdio(j)
	inst, err := r.newInstance(out)
	if err != nil {
		return err
	}

	args := distillArgs(p.OutputFile)
	if out.onText != nil {
		out.onText(commandLine(args), false)
	}
	j.log.Debug().Strs("args", args).Msg("Command Line")

	code := inst.InitWithArgs(args)
	p.ReturnCode = code
	if gsapi.Failed(code) {
		return domain.EngineError("init_with_args failed", code)
	}
	if code == gsapi.Quit {
		// the arguments alone finished the job
		p.ReturnCode = r.destroyHandle()
		return nil
	}

	if code = inst.RunStringBegin(); gsapi.Failed(code) {
		p.ReturnCode = code
		return domain.EngineError("run_string_begin failed", code)
	}

	buf := make([]byte, r.cfg.ReadBufferSize)
	var consumed int64
	var cancelErr error

feed:
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			code = inst.RunStringContinue(buf[:n])
			if code != gsapi.NeedInput && gsapi.Failed(code) {
				p.ReturnCode = code
				return domain.EngineError("run_string_continue failed", code)
			}

			consumed += int64(n)
			r.progress(j, int(100*consumed/total), 0)

			if err := ctx.Err(); err != nil {
				cancelErr = domain.CancelledError("Distill cancelled", err)
				break feed
			}
		}

		switch {
		case readErr == io.EOF:
			break feed
		case readErr != nil:
			return domain.IOError(fmt.Sprintf("Failed to read %s", p.InputFile), readErr)
		}
	}

	code = inst.RunStringEnd()
	if gsapi.Failed(code) && cancelErr == nil {
		p.ReturnCode = code
		return domain.EngineError("run_string_end failed", code)
	}
	if cancelErr != nil {
		return cancelErr
	}

	p.ReturnCode = r.destroyHandle()
	if gsapi.Failed(p.ReturnCode) {
		return domain.EngineError("Engine exit failed", p.ReturnCode)
	}
	if total == 0 {
		r.progress(j, 100, 0)
	}
	return nil
}

// executeRender is the display strategy.
func (r *Runner) executeRender(ctx context.Context, j *job) error {
	p := j.params

	if p.Task == domain.TaskRenderThumbnails && p.NumPages <= 0 {
		if err := r.executePageCount(j); err != nil {
			return err
		}
		p.FirstPage, p.LastPage = 1, p.NumPages
	}
	if p.FirstPage < 1 {
		p.FirstPage = 1
	}
	if p.LastPage < p.FirstPage {
		p.LastPage = p.FirstPage
	}
	if p.Zoom <= 0 {
		p.Zoom = 1
	}

	want := renderState{
		antialias:  p.Antialias,
		resolution: display.Resolution(p.Zoom),
		first:      p.FirstPage,
		last:       p.LastPage,
	}
	span := p.LastPage - p.FirstPage + 1

	var text func(string, bool)
	if j.cb.OnOutput != nil {
		text = func(s string, stderr bool) {
			r.dispatcher.Dispatch(func() { j.cb.OnOutput(s, stderr) })
		}
	}

	sink := func(f display.Frame) {
		p.CurrPage = f.Page
		if ctx.Err() != nil {
			return
		}
		if j.cb.OnPage != nil {
			r.dispatcher.Dispatch(func() { j.cb.OnPage(f) })
		}
		r.progress(j, 100*(f.Page-p.FirstPage+1)/span, f.Page)
	}

	code, err := r.display.Render(p.InputFile, want, p.Zoom, text, sink)
	p.ReturnCode = code
	if err != nil {
		return r.classify(err)
	}
	if err := ctx.Err(); err != nil {
		return domain.CancelledError("Render cancelled", err)
	}
	return nil
}

// OutputExt picks a file extension for a device's output.
func OutputExt(device string) string {
	switch {
	case device == "xpswrite":
		return ".xps"
	case device == "pdfwrite":
		return ".pdf"
	case strings.HasPrefix(device, "png"):
		return ".png"
	case strings.HasPrefix(device, "tiff"):
		return ".tif"
	case strings.HasPrefix(device, "jpeg"):
		return ".jpg"
	case device == "ps2write" || device == "eps2write":
		return ".ps"
	}
	return filepath.Ext("out." + device)
}

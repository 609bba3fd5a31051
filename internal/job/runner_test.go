package job

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/ghostview/internal/display"
	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/gsapi"
	"github.com/spherical/ghostview/internal/gsapi/gsapitest"
	"github.com/spherical/ghostview/internal/observability"
)

func writeInput(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("%"), size), 0o644))
	return path
}

// collector gathers callbacks from one job.
type collector struct {
	mu       sync.Mutex
	progress []int
	pages    []display.Frame
	output   strings.Builder
	results  chan domain.Result
}

func newCollector() *collector {
	return &collector{results: make(chan domain.Result, 1)}
}

func (c *collector) callbacks() Callbacks {
	return Callbacks{
		OnProgress: func(p domain.Progress) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.progress = append(c.progress, p.Percent)
		},
		OnOutput: func(text string, stderr bool) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.output.WriteString(text)
		},
		OnPage: func(f display.Frame) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.pages = append(c.pages, f)
		},
		OnComplete: func(r domain.Result) { c.results <- r },
	}
}

func (c *collector) wait(t *testing.T) domain.Result {
	t.Helper()
	select {
	case r := <-c.results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("job did not complete")
		return domain.Result{}
	}
}

func outputArg(t *testing.T, inst *gsapitest.Instance) string {
	t.Helper()
	for _, args := range inst.Args() {
		for n, a := range args {
			if a == "-o" && n+1 < len(args) {
				return args[n+1]
			}
		}
	}
	t.Fatal("no -o argument")
	return ""
}

func TestRunner_RejectsSecondJobWhileBusy(t *testing.T) {
	lib := &gsapitest.Library{Hold: make(chan struct{}), Entered: make(chan struct{}, 1)}
	r := NewRunner(lib, Config{TempDir: t.TempDir()})
	in := writeInput(t, "in.pdf", 64)
	c := newCollector()

	_, err := r.CreateOutput(context.Background(), in, Export{}, c.callbacks())
	require.NoError(t, err)
	<-lib.Entered

	inflight := r.Handle()
	require.NotNil(t, inflight)
	assert.True(t, r.Busy())
	assert.Equal(t, domain.StateBusy, r.State())

	_, err = r.Distill(context.Background(), in, Callbacks{})
	assert.ErrorIs(t, err, domain.ErrBusy)
	_, err = r.PageCount(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrBusy)

	assert.Equal(t, inflight, r.Handle())
	assert.Len(t, lib.Instances(), 1)

	close(lib.Hold)
	res := c.wait(t)
	assert.True(t, res.OK())
	assert.Nil(t, r.Handle())
	assert.False(t, r.Busy())
	assert.Equal(t, domain.StateReady, r.State())
}

func TestRunner_DistillStreamsInChunks(t *testing.T) {
	lib := &gsapitest.Library{}
	r := NewRunner(lib, Config{TempDir: t.TempDir(), ReadBufferSize: 32 * 1024})
	in := writeInput(t, "in.ps", 100*1024)
	c := newCollector()

	_, err := r.Distill(context.Background(), in, c.callbacks())
	require.NoError(t, err)
	res := c.wait(t)

	require.True(t, res.OK(), "result: %+v", res)
	assert.Equal(t, []int{32, 64, 96, 100}, c.progress)
	assert.Nil(t, r.Handle())

	inst := lib.Instances()[0]
	assert.Equal(t, 100*1024, inst.Fed())
	assert.Equal(t, []string{
		"set_stdio",
		"set_arg_encoding(1)",
		"init_with_args",
		"run_string_begin",
		"run_string_continue",
		"run_string_continue",
		"run_string_continue",
		"run_string_continue",
		"run_string_end",
		"exit",
		"delete_instance",
	}, inst.Calls())

	data, err := os.ReadFile(res.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
	assert.Contains(t, c.output.String(), "Command Line: gs -dNOPAUSE -dBATCH -dSAFER -sDEVICE=pdfwrite")
}

func TestRunner_DistillProgressIsMonotonic(t *testing.T) {
	lib := &gsapitest.Library{}
	r := NewRunner(lib, Config{TempDir: t.TempDir(), ReadBufferSize: 1000})
	in := writeInput(t, "in.ps", 33333)
	c := newCollector()

	_, err := r.Distill(context.Background(), in, c.callbacks())
	require.NoError(t, err)
	require.True(t, c.wait(t).OK())

	require.NotEmpty(t, c.progress)
	for n := 1; n < len(c.progress); n++ {
		assert.GreaterOrEqual(t, c.progress[n], c.progress[n-1])
	}
	assert.Equal(t, 100, c.progress[len(c.progress)-1])
}

func TestRunner_DistillCancelDeletesOutput(t *testing.T) {
	var r *Runner
	lib := &gsapitest.Library{
		OnContinue: func(fed int) { r.Cancel() },
	}
	r = NewRunner(lib, Config{TempDir: t.TempDir(), ReadBufferSize: 1024})
	in := writeInput(t, "in.ps", 10*1024)
	c := newCollector()

	_, err := r.Distill(context.Background(), in, c.callbacks())
	require.NoError(t, err)
	res := c.wait(t)

	assert.Equal(t, domain.StatusCancelled, res.Status)
	assert.Equal(t, domain.ErrorTypeCancelled, res.ErrorType)
	assert.Empty(t, res.OutputFile)
	assert.Nil(t, r.Handle())

	inst := lib.Instances()[0]
	assert.Equal(t, 1024, inst.Fed())
	assert.True(t, inst.Deleted())
	assert.NoFileExists(t, outputArg(t, inst))
}

func TestRunner_DistillFailureDeletesOutput(t *testing.T) {
	lib := &gsapitest.Library{FailContinueAt: 2}
	r := NewRunner(lib, Config{TempDir: t.TempDir(), ReadBufferSize: 1024})
	in := writeInput(t, "in.ps", 4096)
	c := newCollector()

	_, err := r.Distill(context.Background(), in, c.callbacks())
	require.NoError(t, err)
	res := c.wait(t)

	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, domain.ErrorTypeEngine, res.ErrorType)
	assert.Equal(t, gsapi.Fatal, res.ReturnCode)
	assert.Contains(t, c.output.String(), "/syntaxerror")

	inst := lib.Instances()[0]
	assert.NotContains(t, inst.Calls(), "run_string_end")
	assert.True(t, inst.Deleted())
	assert.NoFileExists(t, outputArg(t, inst))
}

func TestRunner_CreateOutputFailureDeletesOutput(t *testing.T) {
	lib := &gsapitest.Library{InitCode: gsapi.Fatal}
	r := NewRunner(lib, Config{TempDir: t.TempDir()})
	in := writeInput(t, "in.pdf", 16)
	c := newCollector()

	_, err := r.CreateOutput(context.Background(), in, Export{}, c.callbacks())
	require.NoError(t, err)
	res := c.wait(t)

	assert.Equal(t, domain.StatusFailed, res.Status)
	out := outputArg(t, lib.Instances()[0])
	assert.Equal(t, ".xps", filepath.Ext(out))
	assert.NoFileExists(t, out)
}

func TestRunner_CreateOutputProgressFromPageLines(t *testing.T) {
	lib := &gsapitest.Library{}
	r := NewRunner(lib, Config{TempDir: t.TempDir()})
	in := writeInput(t, "in.pdf", 16)
	c := newCollector()

	_, err := r.CreateOutput(context.Background(), in, Export{Device: "pdfwrite", FirstPage: 2, LastPage: 5}, c.callbacks())
	require.NoError(t, err)
	res := c.wait(t)

	require.True(t, res.OK())
	assert.Equal(t, []int{25, 50, 75, 100}, c.progress)
	assert.FileExists(t, res.OutputFile)
	assert.Equal(t, ".pdf", filepath.Ext(res.OutputFile))

	args := lib.Instances()[0].Args()[0]
	assert.Contains(t, args, "-r300")
	assert.Contains(t, args, "-dFirstPage=2")
	assert.Contains(t, args, "-dLastPage=5")
}

func TestRunner_PageCount(t *testing.T) {
	lib := &gsapitest.Library{}
	r := NewRunner(lib, Config{})
	in := writeInput(t, "doc.pdf", 16)

	n, err := r.PageCount(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Nil(t, r.Handle())
	assert.False(t, r.Busy())

	args := lib.Instances()[0].Args()[0]
	assert.Contains(t, args, "-sFile="+in)
	assert.Contains(t, args, "--permit-file-read="+in)

	n, err = r.PageCount(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Equal(t, -1, n)
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
	assert.Len(t, lib.Instances(), 1)
}

func TestRunner_PageCountJob(t *testing.T) {
	lib := &gsapitest.Library{Pages: 7}
	r := NewRunner(lib, Config{})
	in := writeInput(t, "doc.pdf", 16)
	c := newCollector()

	_, err := r.Start(context.Background(), &domain.Params{Task: domain.TaskPageCount, InputFile: in}, c.callbacks())
	require.NoError(t, err)
	res := c.wait(t)
	require.True(t, res.OK())
	assert.Equal(t, 7, res.NumPages)
}

func TestRunner_RenderPagesRange(t *testing.T) {
	lib := &gsapitest.Library{Pages: 20}
	r := NewRunner(lib, Config{})
	defer r.Close()
	in := writeInput(t, "doc.pdf", 16)
	c := newCollector()

	_, err := r.RenderPages(context.Background(), in, 3, 5, 1.0, true, c.callbacks())
	require.NoError(t, err)
	res := c.wait(t)
	require.True(t, res.OK(), "result: %+v", res)

	inst := lib.Instances()[0]
	assert.Equal(t, []int{3, 4, 5}, inst.Flips())

	require.Len(t, c.pages, 3)
	for n, f := range c.pages {
		assert.Equal(t, 3+n, f.Page)
		// pages are copied out before the engine reuses its buffer
		assert.Equal(t, byte(3+n), f.Pix[0])
		assert.Equal(t, display.DefaultFormat(), f.Format)
	}
	assert.Equal(t, []int{33, 66, 100}, c.progress)

	args := inst.Args()[0]
	assert.Contains(t, args, "-sDEVICE=display")
	assert.Contains(t, args, "-r72")
	assert.Contains(t, args, "-dTextAlphaBits=4")
	assert.Contains(t, args, "-dFirstPage=3")
	assert.Contains(t, args, "-dLastPage=5")
}

func TestRunner_RenderPagesSetsOnlyChangedParams(t *testing.T) {
	lib := &gsapitest.Library{Pages: 20}
	r := NewRunner(lib, Config{})
	in := writeInput(t, "doc.pdf", 16)

	render := func(first, last int, zoom float64, aa bool) {
		c := newCollector()
		_, err := r.RenderPages(context.Background(), in, first, last, zoom, aa, c.callbacks())
		require.NoError(t, err)
		require.True(t, c.wait(t).OK())
	}

	render(1, 2, 1.0, true)
	render(1, 2, 2.0, true)

	require.Len(t, lib.Instances(), 1)
	inst := lib.Instances()[0]
	assert.Equal(t, []gsapi.Param{
		{Name: "HWResolution", Type: gsapi.ParamParsed, Value: "[144 144]"},
	}, inst.SetParams())
	assert.Equal(t, []bool{false}, inst.MoreToCome())

	render(3, 4, 2.0, false)

	params := inst.SetParams()[1:]
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.String())
	}
	assert.Equal(t, []string{"TextAlphaBits=1", "GraphicsAlphaBits=1", "FirstPage=3", "LastPage=4"}, names)
	assert.Equal(t, []bool{true, true, true, false}, inst.MoreToCome()[1:])
	assert.Equal(t, []int{1, 2, 1, 2, 3, 4}, inst.Flips())

	r.Close()
	assert.True(t, inst.Deleted())
	assert.Equal(t, 0, lib.Live())
}

func TestRunner_RenderRecreatesEngineAfterQuit(t *testing.T) {
	lib := &gsapitest.Library{Pages: 4, RunFileCode: gsapi.Quit}
	r := NewRunner(lib, Config{})
	defer r.Close()
	in := writeInput(t, "doc.pdf", 16)

	for n := 0; n < 3; n++ {
		c := newCollector()
		_, err := r.RenderPages(context.Background(), in, 1, 1, 1.0, true, c.callbacks())
		require.NoError(t, err)
		require.True(t, c.wait(t).OK())
	}

	// init, run_file (quit), then a fresh init
	require.Len(t, lib.Instances(), 2)
	assert.True(t, lib.Instances()[0].Deleted())
	assert.Contains(t, lib.Instances()[0].Calls(), "run_file")
}

func TestRunner_RenderThumbnailsCountsPages(t *testing.T) {
	lib := &gsapitest.Library{Pages: 3}
	r := NewRunner(lib, Config{})
	defer r.Close()
	in := writeInput(t, "doc.pdf", 16)
	c := newCollector()

	_, err := r.RenderThumbnails(context.Background(), in, 0, 0.1, c.callbacks())
	require.NoError(t, err)
	res := c.wait(t)
	require.True(t, res.OK())
	assert.Equal(t, 3, res.NumPages)
	assert.Len(t, c.pages, 3)
	assert.InDelta(t, 0.1, c.pages[0].Zoom, 1e-9)
}

func TestRunner_EngineUnavailableDisablesRunner(t *testing.T) {
	lib := &gsapitest.Library{NewInstanceErr: fmt.Errorf("%w: libgs.so: not found", gsapi.ErrUnavailable)}
	r := NewRunner(lib, Config{TempDir: t.TempDir()})
	in := writeInput(t, "in.ps", 16)
	c := newCollector()

	_, err := r.Distill(context.Background(), in, c.callbacks())
	require.NoError(t, err)
	res := c.wait(t)

	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, domain.ErrorTypeEngineUnavailable, res.ErrorType)
	assert.Equal(t, domain.StateError, r.State())

	_, err = r.Distill(context.Background(), in, Callbacks{})
	assert.True(t, domain.IsType(err, domain.ErrorTypeEngineUnavailable))
	_, err = r.PageCount(context.Background(), in)
	assert.True(t, domain.IsType(err, domain.ErrorTypeEngineUnavailable))
}

func TestRunner_PanicBecomesResult(t *testing.T) {
	lib := &gsapitest.Library{OnContinue: func(int) { panic("boom") }}
	r := NewRunner(lib, Config{TempDir: t.TempDir()})
	in := writeInput(t, "in.ps", 16)
	c := newCollector()

	_, err := r.Distill(context.Background(), in, c.callbacks())
	require.NoError(t, err)
	res := c.wait(t)

	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Contains(t, res.Err.Error(), "boom")
	assert.Nil(t, r.Handle())
	assert.True(t, lib.Instances()[0].Deleted())
}

func TestRunner_StartValidation(t *testing.T) {
	r := NewRunner(&gsapitest.Library{}, Config{})
	in := writeInput(t, "in.pdf", 16)

	tests := []struct {
		name   string
		params *domain.Params
		want   domain.ErrorType
	}{
		{"nil params", nil, domain.ErrorTypeValidation},
		{"unknown task", &domain.Params{Task: "bogus", InputFile: in}, domain.ErrorTypeValidation},
		{"missing input", &domain.Params{Task: domain.TaskDistill}, domain.ErrorTypeValidation},
		{"unreadable input", &domain.Params{Task: domain.TaskDistill, InputFile: in + ".nope"}, domain.ErrorTypeIO},
		{"bad range", &domain.Params{Task: domain.TaskRenderPages, InputFile: in, FirstPage: 4, LastPage: 2}, domain.ErrorTypeValidation},
		{"generic without args", &domain.Params{Task: domain.TaskGeneric}, domain.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Start(context.Background(), tt.params, Callbacks{})
			assert.True(t, domain.IsType(err, tt.want), "got %v", err)
			assert.False(t, r.Busy())
		})
	}
}

func TestRunner_Exec(t *testing.T) {
	lib := &gsapitest.Library{Pages: 2}
	r := NewRunner(lib, Config{})
	in := writeInput(t, "in.pdf", 16)
	out := filepath.Join(t.TempDir(), "out.pdf")

	var buf strings.Builder
	code, err := r.Exec(context.Background(),
		[]string{"gs", "-dBATCH", "-sDEVICE=pdfwrite", "-o", out, "-f", in},
		func(text string, stderr bool) { buf.WriteString(text) })
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, buf.String(), "Command Line: gs -dBATCH")
	assert.Contains(t, buf.String(), "Page 2")
	assert.FileExists(t, out)

	buf.Reset()
	code, err = r.Exec(context.Background(), []string{"gs", "-f", in + ".missing"},
		func(text string, stderr bool) { buf.WriteString(text) })
	assert.Equal(t, gsapi.Fatal, code)
	assert.True(t, domain.IsType(err, domain.ErrorTypeEngine))
	assert.Contains(t, buf.String(), "undefinedfilename")
	assert.Nil(t, r.Handle())
}

type memRecorder struct {
	mu      sync.Mutex
	results []domain.Result
}

func (m *memRecorder) Record(ctx context.Context, r domain.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func TestRunner_RecordsBeforeCompletion(t *testing.T) {
	rec := &memRecorder{}
	r := NewRunner(&gsapitest.Library{}, Config{TempDir: t.TempDir()}, WithRecorder(rec))
	in := writeInput(t, "in.pdf", 16)
	c := newCollector()

	id, err := r.CreateOutput(context.Background(), in, Export{Device: "pdfwrite"}, c.callbacks())
	require.NoError(t, err)
	res := c.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.results, 1)
	assert.Equal(t, id, rec.results[0].JobID)
	assert.Equal(t, res.Status, rec.results[0].Status)
}

func TestRunner_CancelJobOnlyCancelsMatchingJob(t *testing.T) {
	lib := &gsapitest.Library{Hold: make(chan struct{}), Entered: make(chan struct{}, 1)}
	r := NewRunner(lib, Config{TempDir: t.TempDir()})
	in := writeInput(t, "in.pdf", 16)
	c := newCollector()

	id, err := r.CreateOutput(context.Background(), in, Export{}, c.callbacks())
	require.NoError(t, err)
	<-lib.Entered

	assert.False(t, r.CancelJob("some-other-job"))
	assert.False(t, r.CancelJob(""))
	assert.True(t, r.CancelJob(id))

	close(lib.Hold)
	res := c.wait(t)
	assert.Equal(t, domain.StatusCancelled, res.Status)
	assert.False(t, r.CancelJob(id), "finished jobs cannot be cancelled")
}

// gatedDispatcher holds every callback until open is closed.
type gatedDispatcher struct {
	open chan struct{}
}

func (d gatedDispatcher) Dispatch(fn func()) {
	go func() {
		<-d.open
		fn()
	}()
}

func TestRunner_AwaitCancelSparesNextJob(t *testing.T) {
	continued := make(chan struct{}, 1)
	resume := make(chan struct{})
	lib := &gsapitest.Library{
		OnContinue: func(fed int) {
			select {
			case continued <- struct{}{}:
			default:
			}
			<-resume
		},
	}
	gate := gatedDispatcher{open: make(chan struct{})}
	r := NewRunner(lib, Config{TempDir: t.TempDir()}, WithDispatcher(gate))
	pdfIn := writeInput(t, "in.pdf", 16)
	psIn := writeInput(t, "in.ps", 16)

	// the first job finishes, but its completion is still queued
	ctx, cancel := context.WithCancel(context.Background())
	awaited := make(chan error, 1)
	go func() {
		_, err := r.Await(ctx, Callbacks{}, func(cb Callbacks) (string, error) {
			return r.CreateOutput(context.Background(), pdfIn, Export{Device: "pdfwrite"}, cb)
		})
		awaited <- err
	}()
	require.Eventually(t, func() bool { return len(lib.Instances()) == 1 && !r.Busy() }, 5*time.Second, time.Millisecond)

	c := newCollector()
	_, err := r.Distill(context.Background(), psIn, c.callbacks())
	require.NoError(t, err)
	<-continued

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(resume)
	close(gate.open)

	require.NoError(t, <-awaited)
	res := c.wait(t)
	assert.Equal(t, domain.StatusOK, res.Status, "a late cancel must not reach the next job")
}

// trackingCtx counts child contexts registered on it that were not yet
// released.
type trackingCtx struct {
	done chan struct{}
	mu   sync.Mutex
	live int
}

func (c *trackingCtx) Deadline() (time.Time, bool) { return time.Time{}, false }
func (c *trackingCtx) Done() <-chan struct{}       { return c.done }
func (c *trackingCtx) Err() error                  { return nil }
func (c *trackingCtx) Value(any) any               { return nil }

func (c *trackingCtx) AfterFunc(f func()) func() bool {
	c.mu.Lock()
	c.live++
	c.mu.Unlock()
	var once sync.Once
	return func() bool {
		stopped := false
		once.Do(func() {
			c.mu.Lock()
			c.live--
			c.mu.Unlock()
			stopped = true
		})
		return stopped
	}
}

func (c *trackingCtx) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

func TestRunner_ReleasesJobContext(t *testing.T) {
	parent := &trackingCtx{done: make(chan struct{})}
	r := NewRunner(&gsapitest.Library{}, Config{TempDir: t.TempDir()})
	in := writeInput(t, "in.pdf", 16)
	c := newCollector()

	_, err := r.CreateOutput(parent, in, Export{Device: "pdfwrite"}, c.callbacks())
	require.NoError(t, err)
	assert.True(t, c.wait(t).OK())
	assert.Equal(t, 0, parent.Live())
}

func TestRunner_CloseWaitsForSyncCall(t *testing.T) {
	lib := &gsapitest.Library{Hold: make(chan struct{}), Entered: make(chan struct{}, 1)}
	r := NewRunner(lib, Config{})
	in := writeInput(t, "in.pdf", 16)

	execDone := make(chan struct{})
	go func() {
		defer close(execDone)
		_, _ = r.Exec(context.Background(), []string{"gs", "-dBATCH", "-f", in}, nil)
	}()
	<-lib.Entered

	closed := make(chan struct{})
	go func() {
		r.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while Exec was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(lib.Hold)
	<-execDone
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.False(t, r.Busy())
}

func TestRunner_JobLogsCarryJobID(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: &buf})
	r := NewRunner(&gsapitest.Library{}, Config{TempDir: t.TempDir()}, WithLogger(logger))
	in := writeInput(t, "in.pdf", 16)
	c := newCollector()

	id, err := r.CreateOutput(context.Background(), in, Export{Device: "pdfwrite"}, c.callbacks())
	require.NoError(t, err)
	c.wait(t)

	logs := buf.String()
	assert.Contains(t, logs, `"job_id":"`+id+`"`)
	assert.Contains(t, logs, `"task":"create_output"`)
	assert.Contains(t, logs, "Job finished")
}

func TestSerialDispatcher_PreservesOrder(t *testing.T) {
	d := NewSerialDispatcher(4)
	var got []int
	for n := 0; n < 100; n++ {
		d.Dispatch(func() { got = append(got, n) })
	}
	d.Close()

	require.Len(t, got, 100)
	for n, v := range got {
		assert.Equal(t, n, v)
	}

	d.Dispatch(func() { t.Error("dispatched after close") })
}

func TestTempFile(t *testing.T) {
	tmp, err := NewTempFile(t.TempDir(), ".pdf")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tmp.Path, []byte("data"), 0o644))

	dest := filepath.Join(t.TempDir(), "saved.pdf")
	require.NoError(t, tmp.SaveAs(dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	require.NoError(t, tmp.Remove())
	assert.NoFileExists(t, tmp.Path)
	assert.NoError(t, tmp.Remove())
}

func TestParsers(t *testing.T) {
	n, ok := parsePageLine("Page 12\r")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = parsePageLine("Processing pages 1 through 3.")
	assert.False(t, ok)

	n, ok = parsePageCount("GPL Ghostscript\n42\n")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = parsePageCount("Error: /undefined")
	assert.False(t, ok)
}

package printing

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/gsapi/gsapitest"
	"github.com/spherical/ghostview/internal/job"
)

func TestClampRange(t *testing.T) {
	tests := []struct {
		name                string
		first, last, count  int
		wantFirst, wantLast int
	}{
		{"whole document", 0, 0, 5, 1, 5},
		{"inside", 2, 4, 5, 2, 4},
		{"last past end", 3, 9, 5, 3, 5},
		{"first past end", 7, 9, 5, 5, 5},
		{"reversed", 4, 2, 5, 4, 4},
		{"empty document", 1, 1, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := ClampRange(tt.first, tt.last, tt.count)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

type memPaginator []string

func (m memPaginator) PageCount() int { return len(m) }

func (m memPaginator) Page(n int) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m[n-1])), nil
}

func readPage(t *testing.T, p Paginator, n int) string {
	t.Helper()
	rc, err := p.Page(n)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestWithPageRange(t *testing.T) {
	doc := memPaginator{"a", "b", "c", "d", "e"}

	r := WithPageRange(doc, 2, 4)
	require.Equal(t, 3, r.PageCount())
	assert.Equal(t, "b", readPage(t, r, 1))
	assert.Equal(t, "d", readPage(t, r, 3))

	_, err := r.Page(4)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

	assert.Equal(t, 5, WithPageRange(doc, 0, 0).PageCount())
	assert.Equal(t, 0, WithPageRange(memPaginator{}, 1, 3).PageCount())
}

func TestDirPaginator(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-010.pdf", "page-002.pdf", "page-001.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	p, err := NewDirPaginator(dir)
	require.NoError(t, err)
	require.Equal(t, 3, p.PageCount())
	assert.Equal(t, "page-001.pdf", readPage(t, p, 1))
	assert.Equal(t, "page-010.pdf", readPage(t, p, 3))

	_, err = p.Page(0)
	assert.Error(t, err)

	_, err = NewDirPaginator(filepath.Join(dir, "missing"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
}

func TestDirPaginator_OrdersPastThreeDigits(t *testing.T) {
	dir := t.TempDir()
	for n := 1; n <= 1001; n++ {
		name := fmt.Sprintf("page-%03d.pdf", n)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strconv.Itoa(n)), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("notes"), 0o644))

	p, err := NewDirPaginator(dir)
	require.NoError(t, err)
	require.Equal(t, 1002, p.PageCount())
	assert.Equal(t, "999", readPage(t, p, 999))
	assert.Equal(t, "1000", readPage(t, p, 1000))
	assert.Equal(t, "1001", readPage(t, p, 1001))
	assert.Equal(t, "notes", readPage(t, p, 1002))

	assert.Equal(t, "101", readPage(t, WithPageRange(p, 101, 101), 1))
}

func TestCommandSpooler_Args(t *testing.T) {
	assert.Empty(t, CommandSpooler{}.Args(Sheet{Page: 1}))
	assert.Equal(t,
		[]string{"-d", "office", "-t", "report.pdf (page 3)"},
		CommandSpooler{Printer: "office"}.Args(Sheet{Title: "report.pdf", Page: 3}))
}

func TestCommandSpooler_Spool(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	err := CommandSpooler{Command: "true"}.Spool(context.Background(), Sheet{Page: 1}, strings.NewReader("x"))
	assert.NoError(t, err)

	if _, err := exec.LookPath("false"); err == nil {
		err = CommandSpooler{Command: "false"}.Spool(context.Background(), Sheet{Page: 2}, strings.NewReader("x"))
		assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
	}
}

type recordingSpooler struct {
	mu     sync.Mutex
	sheets []Sheet
	bodies []string
	failAt int
}

func (r *recordingSpooler) Spool(_ context.Context, sheet Sheet, page io.Reader) error {
	data, err := io.ReadAll(page)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAt == sheet.Page {
		return domain.IOError("printer jammed", nil)
	}
	r.sheets = append(r.sheets, sheet)
	r.bodies = append(r.bodies, string(data))
	return nil
}

func newPipeline(t *testing.T, lib *gsapitest.Library, sp Spooler, opts ...Option) (*Pipeline, string) {
	t.Helper()
	tmp := t.TempDir()
	r := job.NewRunner(lib, job.Config{TempDir: tmp})
	t.Cleanup(r.Close)
	return NewPipeline(r, sp, append([]Option{WithTempDir(tmp)}, opts...)...), tmp
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n"), 0o644))
	return path
}

func TestPipeline_PrintsRange(t *testing.T) {
	lib := &gsapitest.Library{Pages: 6}
	sp := &recordingSpooler{}
	p, tmp := newPipeline(t, lib, sp)
	in := writeInput(t)

	var spoolProgress []int
	rep, err := p.Print(context.Background(), in, Request{
		FirstPage: 2,
		LastPage:  4,
		OnProgress: func(pr Progress) {
			if pr.Stage == StageSpool {
				spoolProgress = append(spoolProgress, pr.Percent)
			}
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4}, rep.Pages)
	assert.NotEmpty(t, rep.JobID)
	assert.Equal(t, []string{"page 2", "page 3", "page 4"}, sp.bodies)
	assert.Equal(t, "doc.pdf", sp.sheets[0].Title)
	assert.Equal(t, ".pdf", sp.sheets[0].Ext)
	assert.Equal(t, []int{33, 66, 100}, spoolProgress)

	args := strings.Join(lib.Instances()[0].Args()[0], " ")
	assert.Contains(t, args, "-sDEVICE=pdfwrite")
	assert.Contains(t, args, "page-%03d.pdf")

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "intermediate pages must be removed")
}

func TestPipeline_DeviceOverride(t *testing.T) {
	lib := &gsapitest.Library{Pages: 2}
	out := t.TempDir()
	p, _ := newPipeline(t, lib, DirSpooler{Dir: out}, WithDevice("ps2write"))
	in := writeInput(t)

	_, err := p.Print(context.Background(), in, Request{Title: "My Doc"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "My_Doc-001.ps"))
	assert.FileExists(t, filepath.Join(out, "My_Doc-002.ps"))

	_, err = p.Print(context.Background(), in, Request{Title: "x", Device: "png16m", FirstPage: 2})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "x-002.png"))
	assert.NoFileExists(t, filepath.Join(out, "x-001.png"))
}

func TestPipeline_SpoolFailureCleansUp(t *testing.T) {
	lib := &gsapitest.Library{Pages: 3}
	sp := &recordingSpooler{failAt: 2}
	p, tmp := newPipeline(t, lib, sp)

	rep, err := p.Print(context.Background(), writeInput(t), Request{})
	require.Error(t, err)
	assert.Equal(t, []int{1}, rep.Pages)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_RenderFailure(t *testing.T) {
	lib := &gsapitest.Library{Pages: 3, InitCode: -100}
	sp := &recordingSpooler{}
	p, tmp := newPipeline(t, lib, sp)

	_, err := p.Print(context.Background(), writeInput(t), Request{})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeEngine))
	assert.Empty(t, sp.sheets)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_MissingInput(t *testing.T) {
	p, _ := newPipeline(t, &gsapitest.Library{}, &recordingSpooler{})
	_, err := p.Print(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), Request{})
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
}

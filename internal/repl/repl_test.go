package repl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/ghostview/internal/gsapi"
	"github.com/spherical/ghostview/internal/gsapi/gsapitest"
	"github.com/spherical/ghostview/internal/job"
)

func TestParse(t *testing.T) {
	args, err := Parse(`gs -sDEVICE=pdfwrite -o "out file.pdf" -f in.ps`)
	require.NoError(t, err)
	assert.Equal(t, []string{"gs", "-sDEVICE=pdfwrite", "-o", "out file.pdf", "-f", "in.ps"}, args)

	_, err = Parse("ls -la")
	assert.ErrorIs(t, err, ErrNotGhostscript)

	_, err = Parse(`gs "unterminated`)
	assert.Error(t, err)
}

func TestParse_KeepsBackslashesAndApostrophes(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`gs -sOutputFile=C:\out\a.pdf -f C:\in\b.pdf`, []string{"gs", `-sOutputFile=C:\out\a.pdf`, "-f", `C:\in\b.pdf`}},
		{"gs -sTitle=O'Brien -f in.pdf", []string{"gs", "-sTitle=O'Brien", "-f", "in.pdf"}},
		{`gs -o "C:\Program Files\out.pdf" -f in.ps`, []string{"gs", "-o", `C:\Program Files\out.pdf`, "-f", "in.ps"}},
		{`gs -sTitle="it's #1"`, []string{"gs", "-sTitle=it's #1"}},
		{`gs -c "(a) ="  #note`, []string{"gs", "-c", "(a) =", "#note"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			args, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, args)
		})
	}
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "250ms", formatElapsed(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatElapsed(1500*time.Millisecond))
	assert.Equal(t, "2.0m", formatElapsed(2*time.Minute))
}

func runScript(t *testing.T, exec Executor, script string) string {
	t.Helper()
	var out bytes.Buffer
	r := New(exec, strings.NewReader(script), &out, WithNoColor())
	require.NoError(t, r.Run(context.Background()))
	return out.String()
}

func TestREPL_RunsCommands(t *testing.T) {
	lib := &gsapitest.Library{Pages: 2}
	runner := job.NewRunner(lib, job.Config{TempDir: t.TempDir()})

	in := filepath.Join(t.TempDir(), "in.pdf")
	require.NoError(t, os.WriteFile(in, []byte("%PDF-1.7\n"), 0o644))
	out := filepath.Join(t.TempDir(), "out.pdf")

	got := runScript(t, runner, "gs -dBATCH -sDEVICE=pdfwrite -o "+out+" -f "+in+"\nquit\ngs -dBATCH -f "+in+"\n")

	assert.Contains(t, got, "Command Line: gs -dBATCH")
	assert.Contains(t, got, "Page 1\nPage 2\n")
	assert.Contains(t, got, "Elapsed time:")
	assert.Equal(t, 1, strings.Count(got, "Elapsed time:"), "quit ends the loop")
	assert.FileExists(t, out)
	assert.Len(t, lib.Instances(), 1)
	assert.Equal(t, 0, lib.Live())
}

func TestREPL_FailureIsNotFatal(t *testing.T) {
	lib := &gsapitest.Library{}
	runner := job.NewRunner(lib, job.Config{TempDir: t.TempDir()})
	missing := filepath.Join(t.TempDir(), "missing.ps")

	got := runScript(t, runner, "gs -f "+missing+"\n\nnot-gs\ngs -c quit\nexit\n")

	assert.Contains(t, got, "/undefinedfilename")
	assert.Contains(t, got, "code -100")
	assert.Contains(t, got, ErrNotGhostscript.Error())
	assert.Equal(t, 2, strings.Count(got, "Elapsed time:"))
}

type stubExec struct {
	calls [][]string
	err   error
}

func (s *stubExec) Exec(_ context.Context, args []string, out func(string, bool)) (int, error) {
	s.calls = append(s.calls, args)
	out("to stdout\n", false)
	out("to stderr\n", true)
	if s.err != nil {
		return gsapi.Fatal, s.err
	}
	return 0, nil
}

func TestREPL_InterleavesOutput(t *testing.T) {
	ex := &stubExec{}
	got := runScript(t, ex, "gs -h\n")

	assert.Equal(t, [][]string{{"gs", "-h"}}, ex.calls)
	assert.Contains(t, got, "to stdout\nto stderr\n")
}

func TestREPL_StopsWhenEngineUnavailable(t *testing.T) {
	lib := &gsapitest.Library{NewInstanceErr: gsapi.ErrUnavailable}
	runner := job.NewRunner(lib, job.Config{TempDir: t.TempDir()})

	var out bytes.Buffer
	r := New(runner, strings.NewReader("gs -h\ngs -h\n"), &out, WithNoColor())
	err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gsapi.ErrUnavailable))
	assert.Equal(t, 1, strings.Count(out.String(), "Elapsed time:"))
}

func TestREPL_StopsOnCancelledContext(t *testing.T) {
	ex := &stubExec{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.NoError(t, New(ex, strings.NewReader("gs -h\n"), &out).Run(ctx))
	assert.Empty(t, ex.calls)
}

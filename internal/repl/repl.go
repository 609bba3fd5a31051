// Package repl reads Ghostscript command lines from a terminal and runs each
// one on a fresh interpreter instance.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/shlex"

	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/observability"
)

// Program is the word every command line must start with.
const Program = "gs"

// ErrNotGhostscript is returned by Parse for lines that do not start with gs.
var ErrNotGhostscript = errors.New("command must start with " + Program)

// Executor runs one argument vector synchronously. *job.Runner implements it.
type Executor interface {
	Exec(ctx context.Context, args []string, out func(text string, stderr bool)) (int, error)
}

// Option configures a REPL.
type Option func(*REPL)

// WithPrompt sets the prompt printed before each line.
func WithPrompt(p string) Option {
	return func(r *REPL) { r.prompt = p }
}

// WithNoColor disables colored output.
func WithNoColor() Option {
	return func(r *REPL) {
		r.errColor.DisableColor()
		r.infoColor.DisableColor()
	}
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(r *REPL) { r.logger = l }
}

// REPL is the read-run-print loop.
type REPL struct {
	exec      Executor
	in        io.Reader
	out       io.Writer
	prompt    string
	logger    *observability.Logger
	errColor  *color.Color
	infoColor *color.Color
}

// New creates a REPL reading from in and writing to out.
func New(exec Executor, in io.Reader, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		exec:      exec,
		in:        in,
		out:       out,
		prompt:    "> ",
		logger:    observability.Nop(),
		errColor:  color.New(color.FgRed),
		infoColor: color.New(color.FgCyan),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Parse splits line on whitespace, keeping double-quoted segments together.
// Backslashes and single quotes are literal, so Windows paths and names such
// as O'Brien pass through unchanged. The first word must be gs.
func Parse(line string) ([]string, error) {
	args, err := shlex.Split(literal(line))
	if err != nil {
		return nil, fmt.Errorf("parse command line: %w", err)
	}
	if len(args) == 0 || args[0] != Program {
		return nil, ErrNotGhostscript
	}
	return args, nil
}

// literal escapes what shlex would otherwise interpret, leaving the double
// quote as the only special character.
func literal(line string) string {
	var b strings.Builder
	b.Grow(len(line) + 8)
	quoted := false
	for _, c := range line {
		switch {
		case c == '"':
			quoted = !quoted
		case c == '\\':
			b.WriteByte('\\')
		case !quoted && (c == '\'' || c == '#'):
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Run loops until quit, exit, end of input or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	r.infoColor.Fprintf(r.out, "Enter %s commands, or quit to leave.\n", Program)
	scanner := bufio.NewScanner(r.in)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(r.out, r.prompt)
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}

		if err := r.runLine(ctx, line); err != nil {
			if domain.IsType(err, domain.ErrorTypeEngineUnavailable) {
				return err
			}
		}
	}
}

func (r *REPL) runLine(ctx context.Context, line string) error {
	args, err := Parse(line)
	if err != nil {
		r.errColor.Fprintf(r.out, "%v\n", err)
		return err
	}

	start := time.Now()
	code, err := r.exec.Exec(ctx, args, func(text string, stderr bool) {
		if stderr {
			r.errColor.Fprint(r.out, text)
			return
		}
		fmt.Fprint(r.out, text)
	})
	elapsed := time.Since(start)
	r.logger.Debug().Strs("args", args).Int("code", code).Dur("elapsed", elapsed).Msg("REPL command finished")

	if err != nil {
		r.errColor.Fprintf(r.out, "Error: %v (code %d)\n", err, code)
	}
	r.infoColor.Fprintf(r.out, "Elapsed time: %s\n", formatElapsed(elapsed))
	return err
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

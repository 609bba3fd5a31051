package printing

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spherical/ghostview/internal/domain"
)

// Sheet identifies one spooled page.
type Sheet struct {
	Title string
	Page  int
	Ext   string
}

// Spooler hands a single page to a printer.
type Spooler interface {
	Spool(ctx context.Context, sheet Sheet, page io.Reader) error
}

// CommandSpooler pipes each page to a print command such as lp.
type CommandSpooler struct {
	Command string // defaults to lp
	Printer string // empty uses the system default
}

// Args returns the command line used for sheet, without the program name.
func (c CommandSpooler) Args(sheet Sheet) []string {
	var args []string
	if c.Printer != "" {
		args = append(args, "-d", c.Printer)
	}
	if sheet.Title != "" {
		args = append(args, "-t", fmt.Sprintf("%s (page %d)", sheet.Title, sheet.Page))
	}
	return args
}

// Spool implements Spooler.
func (c CommandSpooler) Spool(ctx context.Context, sheet Sheet, page io.Reader) error {
	name := c.Command
	if name == "" {
		name = "lp"
	}
	cmd := exec.CommandContext(ctx, name, c.Args(sheet)...)
	cmd.Stdin = page
	out, err := cmd.CombinedOutput()
	if err != nil {
		return domain.IOError(fmt.Sprintf("%s failed on page %d: %s", name, sheet.Page, strings.TrimSpace(string(out))), err)
	}
	return nil
}

// DirSpooler copies pages into a directory, for print-to-file and tests.
type DirSpooler struct {
	Dir string
}

// Spool implements Spooler.
func (d DirSpooler) Spool(ctx context.Context, sheet Sheet, page io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return domain.IOError("Cannot create spool directory", err)
	}
	dest := filepath.Join(d.Dir, fmt.Sprintf("%s-%03d%s", safeName(sheet.Title), sheet.Page, sheet.Ext))
	f, err := os.Create(dest)
	if err != nil {
		return domain.IOError("Cannot create spool file", err)
	}
	if _, err := io.Copy(f, page); err != nil {
		f.Close()
		return domain.IOError("Cannot write spool file", err)
	}
	if err := f.Close(); err != nil {
		return domain.IOError("Cannot write spool file", err)
	}
	return nil
}

func safeName(title string) string {
	if title == "" {
		return "page"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, title)
}

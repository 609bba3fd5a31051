// Package gsapitest provides a scripted in-memory gsapi.Library for tests.
//
// The fake understands the handful of argument shapes ghostview issues:
// page-count queries print the configured page count, file devices print
// "Page N" lines and write their -o output, and the display device drives
// the registered DisplayHandler through one shared raster buffer that is
// overwritten after every page flip.
package gsapitest

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spherical/ghostview/internal/gsapi"
)

// Library is a fake gsapi.Library. Zero values give a 10 page document.
type Library struct {
	Rev   gsapi.Revision
	Pages int
	// Width and Height of every rendered page in pixels.
	Width, Height int

	// NewInstanceErr makes NewInstance fail.
	NewInstanceErr error
	// InitCode, when non-zero, is returned by InitWithArgs after outputs were written.
	InitCode int
	// RunFileCode, when non-zero, is returned by RunFile.
	RunFileCode int
	// FailContinueAt fails the n-th RunStringContinue call (1-based) with gsapi.Fatal.
	FailContinueAt int
	// OnContinue runs inside RunStringContinue with the bytes fed so far.
	OnContinue func(fed int)
	// Hold blocks InitWithArgs until closed. Entered is signalled first.
	Hold    chan struct{}
	Entered chan struct{}

	mu        sync.Mutex
	instances []*Instance
}

// Revision implements gsapi.Library.
func (l *Library) Revision() (gsapi.Revision, error) {
	if l.Rev.Product == "" {
		return gsapi.Revision{Product: "GPL Ghostscript", Revision: 10021, RevisionDate: 20231101}, nil
	}
	return l.Rev, nil
}

// NewInstance implements gsapi.Library.
func (l *Library) NewInstance() (gsapi.Instance, error) {
	if l.NewInstanceErr != nil {
		return nil, l.NewInstanceErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	inst := &Instance{lib: l, ID: len(l.instances) + 1, params: map[string]any{}}
	l.instances = append(l.instances, inst)
	return inst, nil
}

// Instances returns every instance created so far.
func (l *Library) Instances() []*Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Instance(nil), l.instances...)
}

// Live counts instances that were created and not yet deleted.
func (l *Library) Live() int {
	n := 0
	for _, inst := range l.Instances() {
		if !inst.Deleted() {
			n++
		}
	}
	return n
}

func (l *Library) pages() int {
	if l.Pages == 0 {
		return 10
	}
	return l.Pages
}

func (l *Library) size() (int, int) {
	w, h := l.Width, l.Height
	if w == 0 {
		w = 4
	}
	if h == 0 {
		h = 3
	}
	return w, h
}

// Instance is a fake interpreter instance that records every call.
type Instance struct {
	lib *Library
	ID  int

	mu sync.Mutex
	calls   []string
	args    [][]string
	params  map[string]any
	set     []gsapi.Param
	more    []bool
	flips   []int
	fed     int
	nCont   int
	exited  bool
	deleted bool
	output  string
	format  uint32
	stdio   gsapi.StdioHandler
	display gsapi.DisplayHandler
	raster  []byte
	opened  bool
}

func (i *Instance) record(call string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.deleted {
		panic(fmt.Sprintf("gsapitest: %s on deleted instance %d", call, i.ID))
	}
	i.calls = append(i.calls, call)
}

// Calls returns the API calls made on the instance, in order.
func (i *Instance) Calls() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.calls...)
}

// Args returns the argument vectors passed to InitWithArgs.
func (i *Instance) Args() [][]string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([][]string(nil), i.args...)
}

// SetParams returns every parameter passed to SetParam.
func (i *Instance) SetParams() []gsapi.Param {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]gsapi.Param(nil), i.set...)
}

// MoreToCome returns the more_to_come flag of every SetParam call.
func (i *Instance) MoreToCome() []bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]bool(nil), i.more...)
}

// Flips returns the page numbers delivered through page-flip callbacks.
func (i *Instance) Flips() []int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]int(nil), i.flips...)
}

// Fed returns the number of bytes passed to RunStringContinue.
func (i *Instance) Fed() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.fed
}

// Deleted reports whether Delete was called.
func (i *Instance) Deleted() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.deleted
}

func (i *Instance) SetStdio(h gsapi.StdioHandler) int {
	i.record("set_stdio")
	i.mu.Lock()
	i.stdio = h
	i.mu.Unlock()
	return 0
}

func (i *Instance) SetArgEncoding(enc gsapi.ArgEncoding) int {
	i.record(fmt.Sprintf("set_arg_encoding(%d)", enc))
	return 0
}

func (i *Instance) SetDisplayHandler(h gsapi.DisplayHandler) int {
	i.record("set_display_callback")
	i.mu.Lock()
	i.display = h
	i.mu.Unlock()
	return 0
}

func (i *Instance) InitWithArgs(args []string) int {
	i.record("init_with_args")
	i.mu.Lock()
	i.args = append(i.args, append([]string(nil), args...))
	i.mu.Unlock()

	if i.lib.Hold != nil {
		if i.lib.Entered != nil {
			i.lib.Entered <- struct{}{}
		}
		<-i.lib.Hold
	}

	code := i.interpret(args)
	if i.lib.InitCode != 0 {
		return i.lib.InitCode
	}
	return code
}

func (i *Instance) interpret(args []string) int {
	opts := parseArgs(args)
	batch := opts.has("-dBATCH")
	quit := 0
	if batch {
		quit = gsapi.Quit
	}

	if opts.hasSubstring("pdfpagecount") {
		i.print(fmt.Sprintf("%d\n", i.lib.pages()))
		return gsapi.Quit
	}

	device := opts.value("-sDEVICE=")
	i.mu.Lock()
	i.output = opts.output
	if f, err := strconv.ParseUint(opts.value("-dDisplayFormat="), 10, 32); err == nil {
		i.format = uint32(f)
	}
	for _, name := range []string{"FirstPage", "LastPage"} {
		if v, err := strconv.Atoi(opts.value("-d" + name + "=")); err == nil {
			i.params[name] = v
		}
	}
	i.mu.Unlock()

	if opts.file == "" {
		// streaming setup, input arrives through run_string
		return 0
	}
	if _, err := os.Stat(opts.file); err != nil {
		i.printErr(fmt.Sprintf("Error: /undefinedfilename in (%s)\n", opts.file))
		return gsapi.Fatal
	}

	if device == "display" {
		return i.renderPages()
	}

	first, last := i.pageRange()
	for p := first; p <= last; p++ {
		i.print(fmt.Sprintf("Page %d\n", p))
		if strings.Contains(opts.output, "%") {
			writeFile(fmt.Sprintf(opts.output, p), fmt.Sprintf("page %d", p))
		}
	}
	if opts.output != "" && !strings.Contains(opts.output, "%") {
		writeFile(opts.output, device)
	}
	return quit
}

func (i *Instance) pageRange() (int, int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	first, _ := i.params["FirstPage"].(int)
	last, _ := i.params["LastPage"].(int)
	if first < 1 {
		first = 1
	}
	if last < 1 || last > i.lib.pages() {
		last = i.lib.pages()
	}
	return first, last
}

func (i *Instance) renderPages() int {
	i.mu.Lock()
	d := i.display
	i.mu.Unlock()
	if d == nil {
		return gsapi.Fatal
	}

	w, h := i.lib.size()
	raster := w * 3
	if !i.opened {
		d.Open()
		i.opened = true
	}
	if i.raster == nil {
		i.raster = make([]byte, raster*h)
		d.PreSize(w, h, raster, i.format)
		d.Size(w, h, raster, i.format, i.raster)
	}

	first, last := i.pageRange()
	for p := first; p <= last; p++ {
		fill(i.raster, byte(p))
		d.Sync()
		d.Page(1, true)
		// the engine reuses the buffer as soon as the callback returns
		fill(i.raster, 0xEE)

		i.mu.Lock()
		i.flips = append(i.flips, p)
		i.mu.Unlock()
	}
	return 0
}

func (i *Instance) RunStringBegin() int {
	i.record("run_string_begin")
	return 0
}

func (i *Instance) RunStringContinue(p []byte) int {
	i.record("run_string_continue")
	i.mu.Lock()
	i.fed += len(p)
	i.nCont++
	fed, n := i.fed, i.nCont
	i.mu.Unlock()

	if i.lib.OnContinue != nil {
		i.lib.OnContinue(fed)
	}
	if i.lib.FailContinueAt > 0 && n == i.lib.FailContinueAt {
		i.printErr("Error: /syntaxerror in --run_string--\n")
		return gsapi.Fatal
	}
	return gsapi.NeedInput
}

func (i *Instance) RunStringEnd() int {
	i.record("run_string_end")
	i.mu.Lock()
	out := i.output
	i.mu.Unlock()
	if out != "" {
		writeFile(out, "%PDF-1.7")
	}
	return 0
}

func (i *Instance) RunFile(path string) int {
	i.record("run_file")
	if i.lib.RunFileCode != 0 {
		return i.lib.RunFileCode
	}
	if _, err := os.Stat(path); err != nil {
		return gsapi.Fatal
	}
	return i.renderPages()
}

func (i *Instance) SetParam(p gsapi.Param, moreToCome bool) int {
	i.record("set_param")
	i.mu.Lock()
	defer i.mu.Unlock()
	i.set = append(i.set, p)
	i.more = append(i.more, moreToCome)
	i.params[p.Name] = p.Value
	return 0
}

func (i *Instance) Exit() int {
	i.record("exit")
	i.mu.Lock()
	d, opened := i.display, i.opened
	i.exited = true
	i.mu.Unlock()
	if d != nil && opened {
		d.PreClose()
		d.Close()
	}
	return 0
}

func (i *Instance) Delete() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.deleted {
		panic(fmt.Sprintf("gsapitest: instance %d deleted twice", i.ID))
	}
	if !i.exited {
		panic(fmt.Sprintf("gsapitest: instance %d deleted before exit", i.ID))
	}
	i.calls = append(i.calls, "delete_instance")
	i.deleted = true
}

func (i *Instance) print(s string) {
	i.mu.Lock()
	h := i.stdio
	i.mu.Unlock()
	if h != nil {
		h.Stdout([]byte(s))
	}
}

func (i *Instance) printErr(s string) {
	i.mu.Lock()
	h := i.stdio
	i.mu.Unlock()
	if h != nil {
		h.Stderr([]byte(s))
	}
}

type parsedArgs struct {
	args   []string
	output string
	file   string
}

func parseArgs(args []string) parsedArgs {
	pa := parsedArgs{args: args}
	for n := 0; n < len(args); n++ {
		a := args[n]
		switch {
		case a == "-o" && n+1 < len(args):
			n++
			pa.output = args[n]
		case strings.HasPrefix(a, "-o"):
			pa.output = a[2:]
		case strings.HasPrefix(a, "-sOutputFile="):
			pa.output = strings.TrimPrefix(a, "-sOutputFile=")
		case a == "-f" && n+1 < len(args):
			n++
			pa.file = args[n]
		}
	}
	return pa
}

func (pa parsedArgs) has(arg string) bool {
	for _, a := range pa.args {
		if a == arg {
			return true
		}
	}
	return false
}

func (pa parsedArgs) hasSubstring(s string) bool {
	for _, a := range pa.args {
		if strings.Contains(a, s) {
			return true
		}
	}
	return false
}

func (pa parsedArgs) value(prefix string) string {
	for _, a := range pa.args {
		if strings.HasPrefix(a, prefix) {
			return strings.TrimPrefix(a, prefix)
		}
	}
	return ""
}

func fill(b []byte, v byte) {
	for n := range b {
		b[n] = v
	}
}

func writeFile(path, content string) {
	_ = os.WriteFile(path, []byte(content), 0o644)
}

package gsapi

import (
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// cRevision mirrors gsapi_revision_t.
type cRevision struct {
	product      *byte
	copyright    *byte
	revision     cLong
	revisionDate cLong
}

// nativeLibrary holds the resolved gsapi entry points.
type nativeLibrary struct {
	path string

	revision           func(pr *cRevision, size int32) int32
	newInstance        func(pinstance *uintptr, callerHandle uintptr) int32
	deleteInstance     func(instance uintptr)
	setStdio           func(instance, stdin, stdout, stderr uintptr) int32
	setArgEncoding     func(instance uintptr, encoding int32) int32
	setDisplayCallback func(instance uintptr, callback unsafe.Pointer) int32
	initWithArgs       func(instance uintptr, argc int32, argv unsafe.Pointer) int32
	runStringBegin     func(instance uintptr, userErrors int32, exitCode *int32) int32
	runStringContinue  func(instance uintptr, str unsafe.Pointer, length uint32, userErrors int32, exitCode *int32) int32
	runStringEnd       func(instance uintptr, userErrors int32, exitCode *int32) int32
	runFile            func(instance uintptr, path string, userErrors int32, exitCode *int32) int32
	setParam           func(instance uintptr, param string, value unsafe.Pointer, typ int32) int32
	exit               func(instance uintptr) int32
}

var (
	loadMu sync.Mutex
	loaded = map[string]*nativeLibrary{}
)

// Load opens the native library at path, or searches the platform default
// names when path is empty. Errors wrap ErrUnavailable.
func Load(path string) (Library, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	candidates := defaultLibraryNames
	if path != "" {
		candidates = []string{path}
	}

	var handle uintptr
	var opened string
	var errs []string
	for _, name := range candidates {
		h, err := openLibrary(name)
		if err == nil {
			handle, opened = h, name
			break
		}
		errs = append(errs, fmt.Sprintf("%s: %v", name, err))
	}
	if handle == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, strings.Join(errs, "; "))
	}

	if lib, ok := loaded[opened]; ok {
		return lib, nil
	}

	lib := &nativeLibrary{path: opened}
	symbols := []struct {
		fptr any
		name string
	}{
		{&lib.revision, "gsapi_revision"},
		{&lib.newInstance, "gsapi_new_instance"},
		{&lib.deleteInstance, "gsapi_delete_instance"},
		{&lib.setStdio, "gsapi_set_stdio"},
		{&lib.setArgEncoding, "gsapi_set_arg_encoding"},
		{&lib.setDisplayCallback, "gsapi_set_display_callback"},
		{&lib.initWithArgs, "gsapi_init_with_args"},
		{&lib.runStringBegin, "gsapi_run_string_begin"},
		{&lib.runStringContinue, "gsapi_run_string_continue"},
		{&lib.runStringEnd, "gsapi_run_string_end"},
		{&lib.runFile, "gsapi_run_file"},
		{&lib.setParam, "gsapi_set_param"},
		{&lib.exit, "gsapi_exit"},
	}
	for _, s := range symbols {
		addr, err := lookupSymbol(handle, s.name)
		if err != nil || addr == 0 {
			return nil, fmt.Errorf("%w: %s does not export %s", ErrUnavailable, opened, s.name)
		}
		purego.RegisterFunc(s.fptr, addr)
	}

	loaded[opened] = lib
	return lib, nil
}

// Path returns the file the library was loaded from.
func (l *nativeLibrary) Path() string {
	return l.path
}

// Revision queries gsapi_revision.
func (l *nativeLibrary) Revision() (Revision, error) {
	var r cRevision
	if code := l.revision(&r, int32(unsafe.Sizeof(r))); code != 0 {
		return Revision{}, fmt.Errorf("%w: revision structure size mismatch (%d)", ErrUnavailable, code)
	}
	return Revision{
		Product:      goString(r.product),
		Copyright:    goString(r.copyright),
		Revision:     int(r.revision),
		RevisionDate: int(r.revisionDate),
	}, nil
}

// NewInstance allocates a native interpreter instance.
func (l *nativeLibrary) NewInstance() (Instance, error) {
	inst := &nativeInstance{lib: l}
	inst.handle = register(inst)

	var ptr uintptr
	if code := l.newInstance(&ptr, inst.handle); code < 0 || ptr == 0 {
		unregister(inst.handle)
		return nil, fmt.Errorf("gsapi_new_instance failed with code %d", code)
	}
	inst.ptr = ptr
	return inst, nil
}

// nativeInstance is the callback context for one interpreter instance. It is
// registered under handle for as long as the native instance exists, and the
// display table is pinned for the same lifetime.
type nativeInstance struct {
	lib    *nativeLibrary
	ptr    uintptr
	handle uintptr

	mu      sync.RWMutex
	stdio   StdioHandler
	display DisplayHandler

	table  *displayCallback
	pinner runtime.Pinner
}

func (i *nativeInstance) stdioHandler() StdioHandler {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.stdio
}

func (i *nativeInstance) displayHandler() DisplayHandler {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.display
}

func (i *nativeInstance) SetStdio(h StdioHandler) int {
	i.mu.Lock()
	i.stdio = h
	i.mu.Unlock()

	t := callbacks()
	return int(i.lib.setStdio(i.ptr, t.stdin, t.stdout, t.stderr))
}

func (i *nativeInstance) SetArgEncoding(enc ArgEncoding) int {
	return int(i.lib.setArgEncoding(i.ptr, int32(enc)))
}

func (i *nativeInstance) SetDisplayHandler(h DisplayHandler) int {
	i.mu.Lock()
	i.display = h
	i.mu.Unlock()

	if i.table == nil {
		i.table = newDisplayCallback()
		i.pinner.Pin(i.table)
	}
	return int(i.lib.setDisplayCallback(i.ptr, unsafe.Pointer(i.table)))
}

func (i *nativeInstance) InitWithArgs(args []string) int {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	argv := make([]*byte, len(args)+1)
	for n, arg := range args {
		b := append([]byte(arg), 0)
		pinner.Pin(&b[0])
		argv[n] = &b[0]
	}
	pinner.Pin(&argv[0])

	return int(i.lib.initWithArgs(i.ptr, int32(len(args)), unsafe.Pointer(&argv[0])))
}

func (i *nativeInstance) RunStringBegin() int {
	var exitCode int32
	return int(i.lib.runStringBegin(i.ptr, 0, &exitCode))
}

func (i *nativeInstance) RunStringContinue(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	var exitCode int32
	return int(i.lib.runStringContinue(i.ptr, unsafe.Pointer(&p[0]), uint32(len(p)), 0, &exitCode))
}

func (i *nativeInstance) RunStringEnd() int {
	var exitCode int32
	return int(i.lib.runStringEnd(i.ptr, 0, &exitCode))
}

func (i *nativeInstance) RunFile(path string) int {
	var exitCode int32
	return int(i.lib.runFile(i.ptr, path, 0, &exitCode))
}

func (i *nativeInstance) SetParam(p Param, moreToCome bool) int {
	typ := int32(p.Type)
	if moreToCome {
		typ |= paramMoreToCome
	}

	var value unsafe.Pointer
	switch p.Type {
	case ParamNull:
	case ParamBool:
		v := int32(0)
		if b, _ := p.Value.(bool); b {
			v = 1
		}
		value = unsafe.Pointer(&v)
	case ParamInt:
		v := int32(toInt64(p.Value))
		value = unsafe.Pointer(&v)
	case ParamLong:
		v := cLong(toInt64(p.Value))
		value = unsafe.Pointer(&v)
	case ParamI64:
		v := toInt64(p.Value)
		value = unsafe.Pointer(&v)
	case ParamSizeT:
		v := uintptr(toInt64(p.Value))
		value = unsafe.Pointer(&v)
	case ParamFloat:
		f, _ := p.Value.(float64)
		v := float32(f)
		value = unsafe.Pointer(&v)
	case ParamName, ParamString, ParamParsed:
		s, _ := p.Value.(string)
		b := append([]byte(s), 0)
		value = unsafe.Pointer(&b[0])
	default:
		return Fatal
	}

	return int(i.lib.setParam(i.ptr, p.Name, value, typ))
}

func (i *nativeInstance) Exit() int {
	return int(i.lib.exit(i.ptr))
}

func (i *nativeInstance) Delete() {
	if i.ptr == 0 {
		return
	}
	i.lib.deleteInstance(i.ptr)
	i.ptr = 0
	i.pinner.Unpin()
	unregister(i.handle)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint32:
		return int64(n)
	case bool:
		if n {
			return 1
		}
	case float64:
		if n > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(n)
	}
	return 0
}

// goString copies a NUL-terminated C string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	var n int
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

package gsapi

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Display callback table version implemented by displayCallback.
const (
	displayVersionMajor = 2
	displayVersionMinor = 0
)

// displayCallback mirrors display_callback (version 2).
type displayCallback struct {
	size         int32
	versionMajor int32
	versionMinor int32

	open       uintptr
	preclose   uintptr
	close      uintptr
	presize    uintptr
	resize     uintptr
	sync       uintptr
	page       uintptr
	update     uintptr
	memalloc   uintptr
	memfree    uintptr
	separation uintptr
}

// trampolines are created once per process: purego callbacks are never freed.
type trampolines struct {
	stdin, stdout, stderr uintptr

	open, preclose, close, presize, resize, sync, page, update uintptr
}

var (
	trampolineOnce sync.Once
	trampolineSet  trampolines

	instances  sync.Map // caller handle -> *nativeInstance
	nextHandle atomic.Uintptr
)

func register(inst *nativeInstance) uintptr {
	h := nextHandle.Add(1)
	instances.Store(h, inst)
	return h
}

func unregister(h uintptr) {
	instances.Delete(h)
}

func lookup(h uintptr) *nativeInstance {
	if v, ok := instances.Load(h); ok {
		return v.(*nativeInstance)
	}
	return nil
}

func newDisplayCallback() *displayCallback {
	t := callbacks()
	return &displayCallback{
		size:         int32(unsafe.Sizeof(displayCallback{})),
		versionMajor: displayVersionMajor,
		versionMinor: displayVersionMinor,
		open:         t.open,
		preclose:     t.preclose,
		close:        t.close,
		presize:      t.presize,
		resize:       t.resize,
		sync:         t.sync,
		page:         t.page,
		update:       t.update,
	}
}

// C int arguments arrive as uintptr and are truncated to 32 bits.
func cint(v uintptr) int {
	return int(int32(v))
}

func callbacks() trampolines {
	trampolineOnce.Do(func() {
		trampolineSet = trampolines{
			stdin: purego.NewCallback(func(handle uintptr, buf unsafe.Pointer, n uintptr) uintptr {
				return 0
			}),
			stdout: purego.NewCallback(func(handle uintptr, buf unsafe.Pointer, n uintptr) uintptr {
				return writeStdio(handle, buf, cint(n), false)
			}),
			stderr: purego.NewCallback(func(handle uintptr, buf unsafe.Pointer, n uintptr) uintptr {
				return writeStdio(handle, buf, cint(n), true)
			}),
			open: purego.NewCallback(func(handle uintptr, device unsafe.Pointer) uintptr {
				return withDisplay(handle, func(d DisplayHandler) int { return d.Open() })
			}),
			preclose: purego.NewCallback(func(handle uintptr, device unsafe.Pointer) uintptr {
				return withDisplay(handle, func(d DisplayHandler) int { return d.PreClose() })
			}),
			close: purego.NewCallback(func(handle uintptr, device unsafe.Pointer) uintptr {
				return withDisplay(handle, func(d DisplayHandler) int { return d.Close() })
			}),
			presize: purego.NewCallback(func(handle uintptr, device unsafe.Pointer, width, height, raster, format uintptr) uintptr {
				return withDisplay(handle, func(d DisplayHandler) int {
					return d.PreSize(cint(width), cint(height), cint(raster), uint32(format))
				})
			}),
			resize: purego.NewCallback(func(handle uintptr, device unsafe.Pointer, width, height, raster, format uintptr, pimage unsafe.Pointer) uintptr {
				return withDisplay(handle, func(d DisplayHandler) int {
					w, h, r := cint(width), cint(height), cint(raster)
					var buf []byte
					if pimage != nil && h > 0 && r > 0 {
						buf = unsafe.Slice((*byte)(pimage), r*h)
					}
					return d.Size(w, h, r, uint32(format), buf)
				})
			}),
			sync: purego.NewCallback(func(handle uintptr, device unsafe.Pointer) uintptr {
				return withDisplay(handle, func(d DisplayHandler) int { return d.Sync() })
			}),
			page: purego.NewCallback(func(handle uintptr, device unsafe.Pointer, copies, flush uintptr) uintptr {
				return withDisplay(handle, func(d DisplayHandler) int {
					return d.Page(cint(copies), cint(flush) != 0)
				})
			}),
			update: purego.NewCallback(func(handle uintptr, device unsafe.Pointer, x, y, w, h uintptr) uintptr {
				return withDisplay(handle, func(d DisplayHandler) int {
					return d.Update(cint(x), cint(y), cint(w), cint(h))
				})
			}),
		}
	})
	return trampolineSet
}

func writeStdio(handle uintptr, buf unsafe.Pointer, n int, stderr bool) uintptr {
	inst := lookup(handle)
	if inst == nil || n <= 0 || buf == nil {
		return uintptr(max(n, 0))
	}
	if h := inst.stdioHandler(); h != nil {
		p := unsafe.Slice((*byte)(buf), n)
		if stderr {
			h.Stderr(p)
		} else {
			h.Stdout(p)
		}
	}
	return uintptr(n)
}

func withDisplay(handle uintptr, fn func(DisplayHandler) int) uintptr {
	inst := lookup(handle)
	if inst == nil {
		return 0
	}
	d := inst.displayHandler()
	if d == nil {
		return 0
	}
	return uintptr(int32(fn(d)))
}

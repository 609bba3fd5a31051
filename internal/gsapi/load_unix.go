//go:build darwin || freebsd || linux

package gsapi

import (
	"runtime"

	"github.com/ebitengine/purego"
)

// cLong is the C long type, 64 bits on LP64 platforms.
type cLong = int64

var defaultLibraryNames = func() []string {
	if runtime.GOOS == "darwin" {
		return []string{"libgs.dylib", "libgs.10.dylib", "/opt/homebrew/lib/libgs.dylib", "/usr/local/lib/libgs.dylib"}
	}
	return []string{"libgs.so.10", "libgs.so.9", "libgs.so", "libgpdl.so"}
}()

func openLibrary(name string) (uintptr, error) {
	return purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func lookupSymbol(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

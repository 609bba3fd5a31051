//go:build windows

package gsapi

import (
	"golang.org/x/sys/windows"
)

// cLong is the C long type, 32 bits on LLP64 Windows.
type cLong = int32

var defaultLibraryNames = []string{"gsdll64.dll", "gpdldll64.dll", "gsdll32.dll"}

func openLibrary(name string) (uintptr, error) {
	h, err := windows.LoadLibrary(name)
	return uintptr(h), err
}

func lookupSymbol(handle uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(handle), name)
}

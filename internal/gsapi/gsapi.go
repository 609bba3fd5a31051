// Package gsapi binds the Ghostscript interpreter API (gsapi_*) exported by
// the native gs shared library.
//
// Every Instance wraps one native interpreter instance. The interpreter is
// not reentrant: an Instance must only be used from one goroutine at a time,
// and must be torn down with Destroy (exit, then delete) exactly once.
package gsapi

import (
	"errors"
	"fmt"
)

// Return codes with special meaning.
const (
	// Quit is returned when the interpreter executed quit. It is not a failure.
	Quit = -101
	// NeedInput is the normal return of RunStringContinue.
	NeedInput = -106
	// Fatal means the instance is unusable and must be destroyed.
	Fatal = -100
)

// ErrUnavailable reports that the native library could not be loaded or does
// not export the expected API. It means the engine is unusable, as opposed to
// a single job failing.
var ErrUnavailable = errors.New("ghostscript library unavailable")

// Failed reports whether code is an error code. Quit is not a failure.
func Failed(code int) bool {
	return code < 0 && code != Quit
}

// ArgEncoding selects how InitWithArgs strings are interpreted.
type ArgEncoding int

const (
	ArgEncodingLocal   ArgEncoding = 0
	ArgEncodingUTF8    ArgEncoding = 1
	ArgEncodingUTF16LE ArgEncoding = 2
)

// ParamType mirrors gs_set_param_type.
type ParamType int32

const (
	ParamNull   ParamType = 0
	ParamBool   ParamType = 1
	ParamInt    ParamType = 2
	ParamFloat  ParamType = 3
	ParamName   ParamType = 4
	ParamString ParamType = 5
	ParamLong   ParamType = 6
	ParamI64    ParamType = 7
	ParamSizeT  ParamType = 8
	ParamParsed ParamType = 9

	// paramMoreToCome is OR'ed into the type to queue a parameter until the
	// next call without it.
	paramMoreToCome int32 = -1 << 31
)

// Param is one device parameter for SetParam. Value must be a bool for
// ParamBool, an int for the integer types, a float64 for ParamFloat and a
// string for ParamName, ParamString and ParamParsed.
type Param struct {
	Name  string
	Type  ParamType
	Value any
}

func (p Param) String() string {
	return fmt.Sprintf("%s=%v", p.Name, p.Value)
}

// Revision describes the loaded library.
type Revision struct {
	Product      string
	Copyright    string
	Revision     int
	RevisionDate int
}

// Version formats the revision number, e.g. 10021 as "10.02.1".
func (r Revision) Version() string {
	return fmt.Sprintf("%d.%02d.%d", r.Revision/1000, (r.Revision/10)%100, r.Revision%10)
}

func (r Revision) String() string {
	return fmt.Sprintf("%s %s (%d)", r.Product, r.Version(), r.RevisionDate)
}

// StdioHandler receives interpreter output. Calls happen on the goroutine
// that is inside the interpreter. p is only valid for the duration of the call.
type StdioHandler interface {
	Stdout(p []byte)
	Stderr(p []byte)
}

// DisplayHandler receives display device callbacks. All methods return 0 on
// success. buf passed to Size is engine-owned memory that stays valid until
// the next Size or Close; a handler that wants to keep a page must copy it
// before Page returns.
type DisplayHandler interface {
	Open() int
	PreClose() int
	Close() int
	PreSize(width, height, raster int, format uint32) int
	Size(width, height, raster int, format uint32, buf []byte) int
	Sync() int
	Page(copies int, flush bool) int
	Update(x, y, w, h int) int
}

// Library is a loaded engine able to create interpreter instances.
type Library interface {
	Revision() (Revision, error)
	NewInstance() (Instance, error)
}

// Instance is one native interpreter instance.
type Instance interface {
	SetStdio(h StdioHandler) int
	SetArgEncoding(enc ArgEncoding) int
	SetDisplayHandler(h DisplayHandler) int
	InitWithArgs(args []string) int
	RunStringBegin() int
	RunStringContinue(p []byte) int
	RunStringEnd() int
	RunFile(path string) int
	SetParam(p Param, moreToCome bool) int
	Exit() int
	Delete()
}

// Destroy tears inst down: exit first, then delete, regardless of the exit
// code. It returns the exit code.
func Destroy(inst Instance) int {
	code := inst.Exit()
	inst.Delete()
	return code
}

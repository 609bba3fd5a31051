package job

import (
	"fmt"

	"github.com/spherical/ghostview/internal/display"
	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/gsapi"
	"github.com/spherical/ghostview/internal/observability"
)

// renderState is the set of device parameters last applied to the display
// instance.
type renderState struct {
	antialias  bool
	resolution int
	first      int
	last       int
}

// DisplayEngine keeps one display-device interpreter alive between renders
// so that re-rendering at a new zoom only pushes changed parameters.
// It is only used from the runner's job goroutine.
type DisplayEngine struct {
	lib     gsapi.Library
	format  uint32
	surface *display.Surface
	out     *stdio
	logger  *observability.Logger

	inst  gsapi.Instance
	file  string
	state renderState
}

func newDisplayEngine(lib gsapi.Library, logger *observability.Logger) *DisplayEngine {
	return &DisplayEngine{
		lib:     lib,
		format:  display.DefaultFormat(),
		surface: display.NewSurface(),
		out:     &stdio{},
		logger:  logger,
	}
}

func (e *DisplayEngine) open() error {
	inst, err := e.lib.NewInstance()
	if err != nil {
		return err
	}
	if code := inst.SetStdio(e.out); gsapi.Failed(code) {
		gsapi.Destroy(inst)
		return domain.EngineError("set_stdio failed", code)
	}
	if code := inst.SetArgEncoding(gsapi.ArgEncodingUTF8); gsapi.Failed(code) {
		gsapi.Destroy(inst)
		return domain.EngineError("set_arg_encoding failed", code)
	}
	if code := inst.SetDisplayHandler(e.surface); gsapi.Failed(code) {
		gsapi.Destroy(inst)
		return domain.EngineError("set_display_callback failed", code)
	}
	e.inst = inst
	return nil
}

// Render draws pages first..last of file. Frames are handed to sink as they
// complete. The returned code is the engine return code.
func (e *DisplayEngine) Render(file string, want renderState, zoom float64, text func(string, bool), sink display.Sink) (int, error) {
	if e.inst != nil && e.file != file {
		e.Close()
	}

	e.out.onText = text
	defer func() { e.out.onText = nil }()

	e.surface.Begin(want.first-1, zoom, sink)
	defer e.surface.End()

	var code int
	if e.inst == nil {
		if err := e.open(); err != nil {
			return 0, err
		}
		args := displayArgs(file, want, e.format)
		if text != nil {
			text(commandLine(args), false)
		}
		e.logger.Debug().Strs("args", args).Msg("Starting display engine")
		code = e.inst.InitWithArgs(args)
	} else {
		code = e.apply(want)
		if !gsapi.Failed(code) {
			code = e.inst.RunFile(file)
		}
	}

	e.file = file
	e.state = want

	if gsapi.Failed(code) || code == gsapi.Quit {
		e.Close()
	}
	if gsapi.Failed(code) {
		return code, domain.EngineError(fmt.Sprintf("Failed to render %s", file), code)
	}
	return code, nil
}

// apply pushes only the parameters that differ from the last run. All but the
// last are queued with more_to_come.
func (e *DisplayEngine) apply(want renderState) int {
	var params []gsapi.Param
	if want.antialias != e.state.antialias {
		bits := 1
		if want.antialias {
			bits = 4
		}
		params = append(params,
			gsapi.Param{Name: "TextAlphaBits", Type: gsapi.ParamInt, Value: bits},
			gsapi.Param{Name: "GraphicsAlphaBits", Type: gsapi.ParamInt, Value: bits},
		)
	}
	if want.resolution != e.state.resolution {
		params = append(params, gsapi.Param{
			Name:  "HWResolution",
			Type:  gsapi.ParamParsed,
			Value: fmt.Sprintf("[%d %d]", want.resolution, want.resolution),
		})
	}
	if want.first != e.state.first {
		params = append(params, gsapi.Param{Name: "FirstPage", Type: gsapi.ParamInt, Value: want.first})
	}
	if want.last != e.state.last {
		params = append(params, gsapi.Param{Name: "LastPage", Type: gsapi.ParamInt, Value: want.last})
	}

	for n, p := range params {
		if code := e.inst.SetParam(p, n < len(params)-1); gsapi.Failed(code) {
			return code
		}
	}
	return 0
}

// Close tears the display instance down. Safe to call when nothing is open.
func (e *DisplayEngine) Close() {
	if e.inst == nil {
		return
	}
	code := gsapi.Destroy(e.inst)
	e.logger.Debug().Int("code", code).Msg("Display engine closed")
	e.inst = nil
	e.file = ""
	e.state = renderState{}
}

// Active reports whether a display instance is alive.
func (e *DisplayEngine) Active() bool {
	return e.inst != nil
}

// Package ghostview is the public entry point for driving Ghostscript jobs
// from other Go programs.
package ghostview

import (
	"context"
	"os"

	"github.com/spherical/ghostview/internal/config"
	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/gsapi"
	"github.com/spherical/ghostview/internal/job"
	"github.com/spherical/ghostview/internal/observability"
	"github.com/spherical/ghostview/internal/stream"
)

// Re-export event types for the public API
type (
	StreamEvent = domain.StreamEvent
	EventType   = domain.EventType
	Result      = domain.Result
	Export      = job.Export
	Output      = stream.Output
)

// Event type constants
const (
	EventStart    = domain.EventStart
	EventProgress = domain.EventProgress
	EventOutput   = domain.EventOutput
	EventPage     = domain.EventPage
	EventError    = domain.EventError
	EventComplete = domain.EventComplete
)

// Client runs one job at a time against a loaded Ghostscript library.
type Client struct {
	runner  *job.Runner
	service *stream.Service
}

// Config holds configuration options for the client
type Config struct {
	LibraryPath string // empty searches the platform default names
	TempDir     string
	Resolution  int
	Logger      *observability.Logger
}

// NewClient loads configuration from the environment (GS_LIBRARY,
// GHOSTVIEW_TEMP_DIR, .env) and opens the library.
func NewClient() (*Client, error) {
	cfg, err := config.Load(os.Getenv("GHOSTVIEW_CONFIG"))
	if err != nil {
		return nil, domain.ConfigError("cannot load configuration", err)
	}
	return NewClientWithConfig(&Config{
		LibraryPath: cfg.Engine.LibraryPath,
		TempDir:     cfg.Paths.TempDir,
		Resolution:  cfg.Render.Resolution,
	})
}

// NewClientWithConfig opens the library named in cfg.
func NewClientWithConfig(cfg *Config) (*Client, error) {
	lib, err := gsapi.Load(cfg.LibraryPath)
	if err != nil {
		return nil, domain.EngineUnavailableError("cannot load Ghostscript", err)
	}
	return NewClientWithLibrary(lib, cfg), nil
}

// NewClientWithLibrary wraps an already loaded library.
func NewClientWithLibrary(lib gsapi.Library, cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	runner := job.NewRunner(lib, job.Config{
		TempDir:    cfg.TempDir,
		Resolution: cfg.Resolution,
	}, job.WithLogger(logger))
	return &Client{runner: runner, service: stream.NewService(runner, logger)}
}

// Version reports the loaded library revision, e.g. "10.02.1".
func (c *Client) Version() (string, error) {
	rev, err := c.runner.Revision()
	if err != nil {
		return "", err
	}
	return rev.Version(), nil
}

// PageCount returns the number of pages in a PDF.
func (c *Client) PageCount(ctx context.Context, path string) (int, error) {
	return c.runner.PageCount(ctx, path)
}

// Distill converts a PostScript, XPS or PCL file to PDF. The complete
// event's Result carries the temp PDF path, which the caller owns.
func (c *Client) Distill(ctx context.Context, in string) (<-chan StreamEvent, error) {
	return c.process(ctx, in, func(cb job.Callbacks) (string, error) {
		return c.runner.Distill(ctx, in, cb)
	})
}

// Convert renders in with an output device.
func (c *Client) Convert(ctx context.Context, in string, e Export) (<-chan StreamEvent, error) {
	return c.process(ctx, in, func(cb job.Callbacks) (string, error) {
		return c.runner.CreateOutput(ctx, in, e, cb)
	})
}

// RenderPages renders pages first..last; each page arrives as an EventPage
// whose payload is a display.Frame.
func (c *Client) RenderPages(ctx context.Context, in string, first, last int, zoom float64, antialias bool) (<-chan StreamEvent, error) {
	return c.process(ctx, in, func(cb job.Callbacks) (string, error) {
		return c.runner.RenderPages(ctx, in, first, last, zoom, antialias, cb)
	})
}

// Cancel stops the running job.
func (c *Client) Cancel() {
	c.runner.Cancel()
}

// Close cancels any running job and releases the display engine.
func (c *Client) Close() error {
	c.runner.Close()
	return nil
}

func (c *Client) process(ctx context.Context, in string, start stream.StartFunc) (<-chan StreamEvent, error) {
	if _, err := os.Stat(in); os.IsNotExist(err) {
		return nil, domain.ValidationError("input file not found", err)
	}

	eventCh := make(chan StreamEvent, 100)
	go func() {
		defer close(eventCh)
		_, _ = c.service.Process(ctx, in, start, eventCh)
	}()
	return eventCh, nil
}

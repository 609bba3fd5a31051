package commands

import (
	"context"
	"fmt"

	"github.com/spherical/ghostview/internal/cache"
	"github.com/spherical/ghostview/internal/config"
	"github.com/spherical/ghostview/internal/gsapi"
	"github.com/spherical/ghostview/internal/job"
	"github.com/spherical/ghostview/internal/observability"
	"github.com/spherical/ghostview/internal/storage"
)

// app holds what a command needs: configuration, logger, the loaded library
// and a runner recording into the history store when one is configured.
type app struct {
	cfg    *config.Config
	logger *observability.Logger
	lib    gsapi.Library
	runner *job.Runner
	store  *storage.Store
	cache  cache.Client
}

// loadConfig reads configuration and applies global flags.
func loadConfig() (*config.Config, *observability.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if libPath != "" {
		cfg.Engine.LibraryPath = libPath
	}
	level := cfg.Observability.LogLevel
	if verbose {
		level = "debug"
	} else if level == "info" {
		level = "warn"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "ghostview",
	})
	return cfg, logger, nil
}

// newApp loads the library and opens the history store and render cache.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	lib, err := gsapi.Load(cfg.Engine.LibraryPath)
	if err != nil {
		return nil, fmt.Errorf("load ghostscript: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, lib: lib}

	a.store, err = storage.OpenConfig(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("open job history: %w", err)
	}

	a.cache, err = cache.New(cfg.Cache)
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.Cache.Driver).Msg("Render cache unavailable, continuing without it")
		a.cache = nil
	}

	opts := []job.Option{job.WithLogger(logger)}
	if a.store != nil {
		opts = append(opts, job.WithRecorder(a.store.History()))
	}
	a.runner = job.NewRunner(lib, job.Config{
		ReadBufferSize: cfg.Engine.ReadBufferSize,
		TempDir:        cfg.Paths.TempDir,
		Resolution:     cfg.Render.Resolution,
	}, opts...)

	logger.Debug().
		Str("library", cfg.Engine.LibraryPath).
		Str("history", cfg.History.Driver).
		Str("cache", cfg.Cache.Driver).
		Msg("ghostview initialised")
	return a, nil
}

func (a *app) renderCache() *cache.RenderCache {
	if a.cache == nil {
		return nil
	}
	return cache.NewRenderCache(a.cache, a.cfg.Cache.TTL, a.logger)
}

// Close releases the runner, the cache and the store.
func (a *app) Close() {
	a.runner.Close()
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

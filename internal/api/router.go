// Package api serves the job runner over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/ghostview/internal/job"
	"github.com/spherical/ghostview/internal/observability"
	"github.com/spherical/ghostview/internal/storage"
)

// History is the read side of the job history store.
type History interface {
	List(ctx context.Context, limit int) ([]storage.HistoryEntry, error)
	GetByJobID(ctx context.Context, jobID string) (*storage.HistoryEntry, error)
}

// Config holds HTTP settings.
type Config struct {
	RequestTimeout time.Duration
	MaxUploadBytes int64
	TempDir        string
}

// DefaultConfig returns default settings.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 5 * time.Minute,
		MaxUploadBytes: 256 << 20,
	}
}

// NewRouter creates the API router. history may be nil when no store is
// configured.
func NewRouter(logger *observability.Logger, runner *job.Runner, history History, cfg Config) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "ghostview"})
	})

	jobs := NewJobHandler(logger, runner, cfg)
	hist := NewHistoryHandler(logger, history)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/version", jobs.Version)
		r.Get("/status", jobs.Status)
		r.Post("/cancel", jobs.Cancel)
		r.Post("/pagecount", jobs.PageCount)
		r.Post("/distill", jobs.Distill)
		r.Post("/convert", jobs.Convert)

		r.Route("/history", func(r chi.Router) {
			r.Get("/", hist.List)
			r.Get("/{jobID}", hist.Get)
		})
	})

	return r
}

func requestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/job"
	"github.com/spherical/ghostview/internal/observability"
	"github.com/spherical/ghostview/internal/pdf"
)

// JobHandler exposes runner jobs.
type JobHandler struct {
	logger    *observability.Logger
	runner    *job.Runner
	validator *pdf.Validator
	cfg       Config
}

// NewJobHandler creates a new job handler.
func NewJobHandler(logger *observability.Logger, runner *job.Runner, cfg Config) *JobHandler {
	return &JobHandler{
		logger:    logger,
		runner:    runner,
		validator: &pdf.Validator{MaxSize: cfg.MaxUploadBytes},
		cfg:       cfg,
	}
}

// VersionResponse describes the loaded library.
type VersionResponse struct {
	Product      string `json:"product"`
	Revision     int    `json:"revision"`
	RevisionDate int    `json:"revision_date"`
	Version      string `json:"version"`
}

// Version handles GET /v1/version.
func (h *JobHandler) Version(w http.ResponseWriter, r *http.Request) {
	rev, err := h.runner.Revision()
	if err != nil {
		writeError(w, statusFor(err), "library unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, VersionResponse{
		Product:      rev.Product,
		Revision:     rev.Revision,
		RevisionDate: rev.RevisionDate,
		Version:      rev.Version(),
	})
}

// Status handles GET /v1/status.
func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": string(h.runner.State())})
}

// Cancel handles POST /v1/cancel.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.runner.Cancel()
	w.WriteHeader(http.StatusAccepted)
}

// PageCountResponse is the reply of POST /v1/pagecount.
type PageCountResponse struct {
	Pages int `json:"pages"`
}

// PageCount handles POST /v1/pagecount with a multipart "file" field.
func (h *JobHandler) PageCount(w http.ResponseWriter, r *http.Request) {
	in, kind, err := h.receive(w, r)
	if err != nil {
		writeError(w, statusFor(err), "invalid upload", err)
		return
	}
	defer in.Remove()

	if kind != pdf.KindPDF {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("page count needs a PDF, got %s", kind), nil)
		return
	}

	n, err := h.runner.PageCount(r.Context(), in.Path)
	if err != nil {
		writeError(w, statusFor(err), "page count failed", err)
		return
	}
	writeJSON(w, http.StatusOK, PageCountResponse{Pages: n})
}

// Distill handles POST /v1/distill and replies with the PDF.
func (h *JobHandler) Distill(w http.ResponseWriter, r *http.Request) {
	in, _, err := h.receive(w, r)
	if err != nil {
		writeError(w, statusFor(err), "invalid upload", err)
		return
	}
	defer in.Remove()

	h.run(w, r, "application/pdf", func(cb job.Callbacks) (string, error) {
		return h.runner.Distill(r.Context(), in.Path, cb)
	})
}

// Convert handles POST /v1/convert?device=&first=&last=&resolution= and
// replies with the device output.
func (h *JobHandler) Convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	e := job.Export{Device: q.Get("device")}
	var err error
	if e.FirstPage, err = intParam(q.Get("first")); err == nil {
		if e.LastPage, err = intParam(q.Get("last")); err == nil {
			e.Resolution, err = intParam(q.Get("resolution"))
		}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err)
		return
	}

	in, _, err := h.receive(w, r)
	if err != nil {
		writeError(w, statusFor(err), "invalid upload", err)
		return
	}
	defer in.Remove()

	h.run(w, r, "application/octet-stream", func(cb job.Callbacks) (string, error) {
		return h.runner.CreateOutput(r.Context(), in.Path, e, cb)
	})
}

// run awaits a job that writes a temp output and streams that output back.
func (h *JobHandler) run(w http.ResponseWriter, r *http.Request, contentType string, start func(job.Callbacks) (string, error)) {
	res, err := h.runner.Await(r.Context(), job.Callbacks{}, start)
	out := &job.TempFile{Path: res.OutputFile}
	defer out.Remove()
	if err != nil {
		writeError(w, statusFor(err), "job failed", err)
		return
	}

	f, err := os.Open(out.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "output missing", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(out.Path)))
	w.Header().Set("X-Job-ID", res.JobID)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn().Err(err).Str("job_id", res.JobID).Msg("Failed to stream output")
	}
}

// receive stores the multipart "file" field in a temp file and validates it.
func (h *JobHandler) receive(w http.ResponseWriter, r *http.Request) (*job.TempFile, pdf.Kind, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, pdf.KindUnknown, domain.ValidationError("missing multipart field \"file\"", err)
	}
	defer file.Close()

	tmp, err := job.NewTempFile(h.cfg.TempDir, filepath.Ext(header.Filename))
	if err != nil {
		return nil, pdf.KindUnknown, err
	}
	if err := copyTo(tmp.Path, file); err != nil {
		tmp.Remove()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pdf.KindUnknown, domain.ValidationError("upload too large", err)
		}
		return nil, pdf.KindUnknown, domain.IOError("cannot store upload", err)
	}

	kind, err := h.validator.ValidateInput(tmp.Path)
	if err != nil {
		tmp.Remove()
		return nil, pdf.KindUnknown, err
	}
	h.logger.Debug().
		Str("filename", header.Filename).
		Int64("size", header.Size).
		Str("kind", string(kind)).
		Msg("Upload received")
	return tmp, kind, nil
}

func copyTo(path string, src io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return n, nil
}

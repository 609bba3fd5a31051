package api

import (
	"encoding/json"
	"net/http"

	"github.com/spherical/ghostview/internal/domain"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Type   string `json:"type,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Detail = err.Error()
		resp.Type = string(domain.TypeOf(err))
	}
	writeJSON(w, status, resp)
}

// statusFor maps a job error to an HTTP status.
func statusFor(err error) int {
	switch domain.TypeOf(err) {
	case domain.ErrorTypeValidation, domain.ErrorTypeIO:
		return http.StatusBadRequest
	case domain.ErrorTypeBusy:
		return http.StatusConflict
	case domain.ErrorTypeCancelled:
		return http.StatusRequestTimeout
	case domain.ErrorTypeEngine:
		return http.StatusUnprocessableEntity
	case domain.ErrorTypeEngineUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

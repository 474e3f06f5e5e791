package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fundops/compliance-engine/internal/domain"
)

// envelope is the response shape every handler writes:
// {"success": bool, "data": ..., "error": string, "fieldErrors": [...]}.
type envelope struct {
	Success     bool                 `json:"success"`
	Data        interface{}          `json:"data,omitempty"`
	Error       string               `json:"error,omitempty"`
	FieldErrors []domain.FieldError  `json:"fieldErrors,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: status < 400, Data: data}); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// respondError classifies err against the domain's sentinel error kinds
// and writes the matching HTTP status, per spec.md §7's propagation policy.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	env := envelope{Error: err.Error()}
	var ve *domain.ValidationError
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		env.FieldErrors = ve.Fields
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrAvailability):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEvaluation):
		status = http.StatusUnprocessableEntity
	default:
		s.log.Error().Err(err).Msg("internal error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(env); encErr != nil {
		s.log.Error().Err(encErr).Msg("failed to encode error response")
	}
}

func (s *Server) respondBadRequest(w http.ResponseWriter, msg string) {
	s.respondError(w, domain.NewValidationError(msg))
}

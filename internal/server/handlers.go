package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/pipeline"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// handleAnonymize runs the pipeline for one document and returns the run
// summary. Error mapping: missing document 404, duplicate row 409, invalid
// document 422, everything else 500.
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collection := vars["collection"]
	documentID := vars["id"]

	summary, err := s.pipeline.Run(r.Context(), collection, documentID)
	if err != nil {
		s.writeRunError(w, documentID, err)
		return
	}

	// A degraded run (persistence_error set) still returns 200: the caller
	// has a complete anonymized result.
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) writeRunError(w http.ResponseWriter, documentID string, err error) {
	var notFound *pipeline.NotFoundError
	var validation *pipeline.ValidationError
	var duplicate *pipeline.DuplicateRecordError

	switch {
	case errors.As(err, &notFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: notFound.Error(), Code: "not_found"})
	case errors.As(err, &duplicate):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: duplicate.Error(), Code: "duplicate"})
	case errors.As(err, &validation):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: validation.Error(), Code: "validation"})
	default:
		s.logger.Error("anonymize request failed",
			zap.String("document_id", documentID),
			zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":    "ehr-anonymizer",
		"version": s.version,
		"storage": s.config.Storage.Mode,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

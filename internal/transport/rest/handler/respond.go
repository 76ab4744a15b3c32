package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fieldcheck/internal/checklist"
	"fieldcheck/internal/evidence"
	"fieldcheck/internal/repository"
	"fieldcheck/internal/service"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error      string                `json:"error"`
	QuestionID string                `json:"questionId,omitempty"`
	Violations []checklist.Violation `json:"violations,omitempty"`
	Cycle      []string              `json:"cycle,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps domain errors onto HTTP statuses
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var verr *checklist.ValidationError
	if errors.As(err, &verr) {
		resp.Violations = verr.Violations
	}
	var cerr *checklist.CycleError
	if errors.As(err, &cerr) {
		resp.Cycle = cerr.IDs
	}
	var aerr *checklist.AnswerError
	if errors.As(err, &aerr) {
		resp.QuestionID = aerr.QuestionID
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		resp = ErrorResponse{Error: "internal error"}
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, checklist.ErrNotFound),
		errors.Is(err, checklist.ErrNotPublished),
		errors.Is(err, evidence.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, checklist.ErrStructuralViolation),
		errors.Is(err, checklist.ErrCycle),
		errors.Is(err, checklist.ErrTypeMismatch),
		errors.Is(err, checklist.ErrMissingEvidence),
		errors.Is(err, checklist.ErrEvidenceNotAllowed),
		errors.Is(err, checklist.ErrUnknownQuestion):
		return http.StatusUnprocessableEntity

	case errors.Is(err, checklist.ErrInactiveQuestion),
		errors.Is(err, checklist.ErrExecutionCompleted),
		errors.Is(err, checklist.ErrSubChecklistLocked),
		errors.Is(err, checklist.ErrTemplateMismatch),
		errors.Is(err, repository.ErrStaleExecution),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, service.ErrNotCompleted):
		return http.StatusConflict

	case errors.Is(err, evidence.ErrEmpty),
		errors.Is(err, evidence.ErrInvalidRef):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fieldcheck/internal/checklist"
	"fieldcheck/internal/model"
	"fieldcheck/internal/service"

	"github.com/gorilla/mux"
)

// maxEvidenceBytes caps a single evidence upload
const maxEvidenceBytes = 25 << 20

// InspectionHandler handles inspection endpoints
type InspectionHandler struct {
	inspectionSvc *service.InspectionService
}

// NewInspectionHandler creates a new inspection handler
func NewInspectionHandler(inspectionSvc *service.InspectionService) *InspectionHandler {
	return &InspectionHandler{
		inspectionSvc: inspectionSvc,
	}
}

// StartInspectionRequest is the request body for starting an inspection
type StartInspectionRequest struct {
	TemplateID string `json:"templateId"`
	Version    string `json:"version,omitempty"` // empty means latest published
}

// CompleteResponse is returned when an inspection is completed
type CompleteResponse struct {
	Inspection *model.Execution `json:"inspection"`
	Progress   model.Progress   `json:"progress"`
}

// Start handles POST /v1/inspections
func (h *InspectionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartInspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TemplateID == "" {
		writeError(w, http.StatusBadRequest, "templateId is required")
		return
	}

	e, err := h.inspectionSvc.Start(r.Context(), req.TemplateID, req.Version)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// Get handles GET /v1/inspections/{id}
func (h *InspectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.inspectionSvc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// SubmitAnswer handles POST /v1/inspections/{id}/answers
func (h *InspectionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "questionId is required")
		return
	}

	resp, err := h.inspectionSvc.Submit(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Progress handles GET /v1/inspections/{id}/progress
func (h *InspectionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.inspectionSvc.Progress(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Questions handles GET /v1/inspections/{id}/questions
func (h *InspectionHandler) Questions(w http.ResponseWriter, r *http.Request) {
	views, err := h.inspectionSvc.Questions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": views})
}

// SubChecklists handles GET /v1/inspections/{id}/subchecklists
func (h *InspectionHandler) SubChecklists(w http.ResponseWriter, r *http.Request) {
	links, err := h.inspectionSvc.SubChecklists(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if links == nil {
		links = []checklist.SubChecklistLink{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subChecklists": links})
}

// StartSubChecklist handles POST /v1/inspections/{id}/subchecklists/{questionId}
func (h *InspectionHandler) StartSubChecklist(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	child, err := h.inspectionSvc.StartSubChecklist(r.Context(), vars["id"], vars["questionId"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

// Complete handles POST /v1/inspections/{id}/complete
func (h *InspectionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	e, p, err := h.inspectionSvc.Complete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CompleteResponse{Inspection: e, Progress: p})
}

// ListByTemplate handles GET /v1/templates/{id}/inspections
func (h *InspectionHandler) ListByTemplate(w http.ResponseWriter, r *http.Request) {
	list, err := h.inspectionSvc.ListByTemplate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"inspections": list})
}

// Report handles GET /v1/inspections/{id}/report
func (h *InspectionHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.inspectionSvc.Report(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// UploadEvidence handles POST /v1/inspections/{id}/evidence. The body is the
// raw media; the response carries the reference to submit with an answer.
func (h *InspectionHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	if _, err := h.inspectionSvc.Get(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEvidenceBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "evidence is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	ref, err := h.inspectionSvc.UploadEvidence(r.Context(), data, contentType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"ref": ref, "contentType": contentType})
}

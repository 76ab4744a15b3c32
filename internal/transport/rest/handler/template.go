package handler

import (
	"encoding/json"
	"net/http"

	"fieldcheck/internal/checklist"
	"fieldcheck/internal/model"
	"fieldcheck/internal/service"

	"github.com/gorilla/mux"
)

// TemplateHandler handles template endpoints
type TemplateHandler struct {
	templateSvc *service.TemplateService
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templateSvc *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{
		templateSvc: templateSvc,
	}
}

// ValidateResponse is the body returned by template validation
type ValidateResponse struct {
	Valid      bool                  `json:"valid"`
	Violations []checklist.Violation `json:"violations"`
}

// Create handles POST /v1/templates
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var t model.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.templateSvc.Create(r.Context(), &t)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /v1/templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateSvc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if templates == nil {
		templates = []*model.TemplateSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"templates": templates})
}

// Get handles GET /v1/templates/{id}
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.templateSvc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Update handles PUT /v1/templates/{id}
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	var t model.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.templateSvc.Update(r.Context(), mux.Vars(r)["id"], &t)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Validate handles POST /v1/templates/validate. An invalid template is a
// successful validation with violations.
func (h *TemplateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var t model.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.templateSvc.Validate(r.Context(), &t)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	violations := res.Violations
	if violations == nil {
		violations = []checklist.Violation{}
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: res.Valid(), Violations: violations})
}

// Publish handles POST /v1/templates/{id}/publish
func (h *TemplateHandler) Publish(w http.ResponseWriter, r *http.Request) {
	published, err := h.templateSvc.Publish(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, published)
}

// Versions handles GET /v1/templates/{id}/versions
func (h *TemplateHandler) Versions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.templateSvc.Versions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if versions == nil {
		versions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

// Version handles GET /v1/templates/{id}/versions/{version}
func (h *TemplateHandler) Version(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := h.templateSvc.Published(r.Context(), vars["id"], vars["version"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

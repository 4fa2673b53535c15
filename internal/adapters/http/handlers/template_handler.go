package handlers

import (
	"net/http"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/dto"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// TemplateHandler handles HTTP requests for templates.
type TemplateHandler struct {
	templates ports.TemplateService
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templates ports.TemplateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// ListTemplates handles GET /api/v1/templates.
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.ListTemplates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ToTemplateListResponse(templates))
}

// GetTemplate handles GET /api/v1/templates/{templateID}.
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, ParamTemplateID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tpl, err := h.templates.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ToTemplateResponse(tpl))
}

// UpdateTemplate handles PATCH /api/v1/templates/{templateID}.
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, ParamTemplateID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.UpdateTemplateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tpl, err := h.templates.UpdateTemplate(r.Context(), id, req.ToDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ToTemplateResponse(tpl))
}

// DeleteTemplate handles DELETE /api/v1/templates/{templateID}.
func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, ParamTemplateID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.templates.DeleteTemplate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SaveAsTemplate handles POST /api/v1/owners/{ownerID}/templates.
func (h *TemplateHandler) SaveAsTemplate(w http.ResponseWriter, r *http.Request) {
	owner, err := pathParam(r, ParamOwnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.SaveTemplateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tpl, err := h.templates.SaveAsTemplate(r.Context(), owner, req.Name, req.IncludeContent, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.ToTemplateResponse(tpl))
}

// SaveStageAsTemplate handles POST /api/v1/owners/{ownerID}/stages/{stageKey}/template.
func (h *TemplateHandler) SaveStageAsTemplate(w http.ResponseWriter, r *http.Request) {
	owner, err := pathParam(r, ParamOwnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	key, err := pathParam(r, ParamStageKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.SaveTemplateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tpl, err := h.templates.SaveStageAsTemplate(r.Context(), owner, key, req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.ToTemplateResponse(tpl))
}

// ApplyTemplate handles POST /api/v1/owners/{ownerID}/templates/{templateID}/apply.
// A run that fails after stages were written answers 500 and lists the
// orphaned stage keys.
func (h *TemplateHandler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	owner, err := pathParam(r, ParamOwnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathParam(r, ParamTemplateID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// The body is optional; an empty one applies a skeleton.
	var req dto.ApplyTemplateRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, &req) {
		return
	}

	report, err := h.templates.ApplyTemplate(r.Context(), owner, id, req.ToDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.ToApplyReportResponse(report))
}

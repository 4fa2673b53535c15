package handlers

import (
	"net/http"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/dto"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// StageHandler handles HTTP requests for an owner's stages and the
// owner-level views.
type StageHandler struct {
	trackers  ports.TrackerService
	templates ports.TemplateService
}

// NewStageHandler creates a new StageHandler.
func NewStageHandler(trackers ports.TrackerService, templates ports.TemplateService) *StageHandler {
	return &StageHandler{trackers: trackers, templates: templates}
}

// ListStages handles GET /api/v1/owners/{ownerID}/stages. It reloads the
// owner from the store.
func (h *StageHandler) ListStages(w http.ResponseWriter, r *http.Request) {
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	views, err := tr.LoadAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ToPipelineResponse(tr.OwnerID(), views))
}

// Summary handles GET /api/v1/owners/{ownerID}/summary.
func (h *StageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ToSummaryResponse(tr.Summary()))
}

// AddStage handles POST /api/v1/owners/{ownerID}/stages.
func (h *StageHandler) AddStage(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateStageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	st, err := tr.AddStage(r.Context(), req.Name, req.Icon)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.ToStageResponse(st))
}

// UpdateStage handles PATCH /api/v1/owners/{ownerID}/stages/{stageKey}.
func (h *StageHandler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, ParamStageKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.UpdateStageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	st, err := tr.UpdateStage(r.Context(), key, req.Name, req.Icon)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ToStageResponse(st))
}

// DeleteStage handles DELETE /api/v1/owners/{ownerID}/stages/{stageKey}.
func (h *StageHandler) DeleteStage(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, ParamStageKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	if err := tr.DeleteStage(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BulkDeleteStages handles POST /api/v1/owners/{ownerID}/stages/bulk-delete.
func (h *StageHandler) BulkDeleteStages(w http.ResponseWriter, r *http.Request) {
	var req dto.StageKeysRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	if err := tr.BulkDeleteStages(r.Context(), req.StageKeys); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReorderStages handles POST /api/v1/owners/{ownerID}/stages/reorder.
func (h *StageHandler) ReorderStages(w http.ResponseWriter, r *http.Request) {
	var req dto.StageKeysRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	if err := tr.ReorderStages(r.Context(), req.StageKeys); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AssignFolder handles PUT /api/v1/owners/{ownerID}/stages/{stageKey}/folder.
func (h *StageHandler) AssignFolder(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, ParamStageKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.FolderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	st, err := tr.AssignStageToFolder(r.Context(), key, req.FolderID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ToStageResponse(st))
}

// CopyStage handles GET /api/v1/owners/{ownerID}/stages/{stageKey}/copy.
func (h *StageHandler) CopyStage(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, ParamStageKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	snap, err := tr.CopyStageData(key)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ToSnapshotPayload(snap))
}

// PasteStage handles POST /api/v1/owners/{ownerID}/stages/paste.
func (h *StageHandler) PasteStage(w http.ResponseWriter, r *http.Request) {
	var req dto.StageSnapshotPayload
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	st, err := tr.PasteStageData(r.Context(), req.ToDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.ToStageResponse(st))
}

// CopyFromOwner handles POST /api/v1/owners/{ownerID}/stages/copy-from.
func (h *StageHandler) CopyFromOwner(w http.ResponseWriter, r *http.Request) {
	target, err := pathParam(r, ParamOwnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.CopyFromOwnerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	keys, err := h.templates.CopyStagesFromOwner(r.Context(), req.SourceOwnerID, target, req.StageKeys, req.FolderID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.StageKeysResponse{StageKeys: keys})
}

// AddTasks handles POST /api/v1/owners/{ownerID}/stages/{stageKey}/tasks.
// A body with "titles" adds them in one batch.
func (h *StageHandler) AddTasks(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, ParamStageKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.CreateTasksRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	if req.IsBulk() {
		tasks, err := tr.AddBulkTasks(r.Context(), key, req.Titles)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, dto.ToTaskListResponse(tasks))
		return
	}

	t, err := tr.AddTask(r.Context(), key, req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, dto.ToTaskResponse(t))
}

// ReorderTasks handles POST /api/v1/owners/{ownerID}/stages/{stageKey}/tasks/reorder.
func (h *StageHandler) ReorderTasks(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, ParamStageKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.TaskIDsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	if err := tr.ReorderTasks(r.Context(), key, req.TaskIDs); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

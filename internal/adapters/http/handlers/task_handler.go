package handlers

import (
	"net/http"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/dto"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// TaskHandler handles HTTP requests for an owner's tasks.
type TaskHandler struct {
	trackers ports.TrackerService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(trackers ports.TrackerService) *TaskHandler {
	return &TaskHandler{trackers: trackers}
}

// taskOp runs fn against the task named in the path and writes the
// returned task.
func (h *TaskHandler) taskOp(w http.ResponseWriter, r *http.Request, fn func(tr ports.OwnerTracker, id string) (workflow.Task, error)) {
	id, err := pathParam(r, ParamTaskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	t, err := fn(tr, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ToTaskResponse(t))
}

// UpdateTask handles PATCH /api/v1/owners/{ownerID}/tasks/{taskID}.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.taskOp(w, r, func(tr ports.OwnerTracker, id string) (workflow.Task, error) {
		return tr.UpdateTask(r.Context(), id, req.Title)
	})
}

// ToggleTask handles POST /api/v1/owners/{ownerID}/tasks/{taskID}/toggle.
func (h *TaskHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	h.taskOp(w, r, func(tr ports.OwnerTracker, id string) (workflow.Task, error) {
		return tr.ToggleTask(r.Context(), id)
	})
}

// SetCompletedAt handles PUT /api/v1/owners/{ownerID}/tasks/{taskID}/completed-at.
func (h *TaskHandler) SetCompletedAt(w http.ResponseWriter, r *http.Request) {
	var req dto.CompletedAtRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.taskOp(w, r, func(tr ports.OwnerTracker, id string) (workflow.Task, error) {
		return tr.UpdateTaskCompletedDate(r.Context(), id, req.CompletedAt)
	})
}

// UpdateStyle handles PATCH /api/v1/owners/{ownerID}/tasks/{taskID}/style.
func (h *TaskHandler) UpdateStyle(w http.ResponseWriter, r *http.Request) {
	var req dto.TaskStyleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.taskOp(w, r, func(tr ports.OwnerTracker, id string) (workflow.Task, error) {
		return tr.UpdateTaskStyle(r.Context(), id, req.ToDomain())
	})
}

// DeleteTask handles DELETE /api/v1/owners/{ownerID}/tasks/{taskID}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, ParamTaskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	if err := tr.DeleteTask(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BulkDeleteTasks handles POST /api/v1/owners/{ownerID}/tasks/bulk-delete.
func (h *TaskHandler) BulkDeleteTasks(w http.ResponseWriter, r *http.Request) {
	var req dto.TaskIDsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	if err := tr.BulkDeleteTasks(r.Context(), req.TaskIDs); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

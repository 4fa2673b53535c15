package handlers

import (
	"net/http"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/dto"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// TimerHandler handles progress-timer requests for stages and tasks. The
// same handler serves both; the router decides which path parameter names
// the timer holder.
type TimerHandler struct {
	trackers ports.TrackerService
	entity   workflow.EntityKind
}

// NewStageTimerHandler serves timers addressed by {stageKey}.
func NewStageTimerHandler(trackers ports.TrackerService) *TimerHandler {
	return &TimerHandler{trackers: trackers, entity: workflow.EntityStage}
}

// NewTaskTimerHandler serves timers addressed by {taskID}.
func NewTaskTimerHandler(trackers ports.TrackerService) *TimerHandler {
	return &TimerHandler{trackers: trackers, entity: workflow.EntityTask}
}

func (h *TimerHandler) ref(r *http.Request) (workflow.Ref, error) {
	if h.entity == workflow.EntityStage {
		key, err := pathParam(r, ParamStageKey)
		return workflow.StageRef(key), err
	}
	id, err := pathParam(r, ParamTaskID)
	return workflow.TaskRef(id), err
}

func (h *TimerHandler) run(w http.ResponseWriter, r *http.Request, fn func(tr ports.OwnerTracker, ref workflow.Ref) error) {
	ref, err := h.ref(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}

	if err := fn(tr, ref); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Start handles POST .../timer.
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.TimerTargetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.run(w, r, func(tr ports.OwnerTracker, ref workflow.Ref) error {
		return tr.StartTimer(r.Context(), ref, req.TargetWorkingDays)
	})
}

// Stop handles POST .../timer/stop.
func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(tr ports.OwnerTracker, ref workflow.Ref) error {
		return tr.StopTimer(r.Context(), ref)
	})
}

// Target handles POST .../timer/target.
func (h *TimerHandler) Target(w http.ResponseWriter, r *http.Request) {
	var req dto.TimerTargetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.run(w, r, func(tr ports.OwnerTracker, ref workflow.Ref) error {
		return tr.UpdateTimerTarget(r.Context(), ref, req.TargetWorkingDays)
	})
}

// CycleStyle handles POST .../timer/style.
func (h *TimerHandler) CycleStyle(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(tr ports.OwnerTracker, ref workflow.Ref) error {
		return tr.CycleTimerDisplayStyle(r.Context(), ref)
	})
}

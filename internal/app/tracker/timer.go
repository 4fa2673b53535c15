package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

// StartTimer starts the clock now against a target of working days.
func (t *Tracker) StartTimer(ctx context.Context, ref workflow.Ref, targetWorkingDays int) error {
	return t.applyTimer(ctx, "StartTimer", ref, func(workflow.Timer) (workflow.TimerChange, error) {
		return workflow.StartTimer(t.now(), targetWorkingDays)
	})
}

// StopTimer clears the start time and the target.
func (t *Tracker) StopTimer(ctx context.Context, ref workflow.Ref) error {
	return t.applyTimer(ctx, "StopTimer", ref, func(workflow.Timer) (workflow.TimerChange, error) {
		return workflow.StopTimer(), nil
	})
}

// UpdateTimerTarget changes the target only; a running clock keeps going.
func (t *Tracker) UpdateTimerTarget(ctx context.Context, ref workflow.Ref, targetWorkingDays int) error {
	return t.applyTimer(ctx, "UpdateTimerTarget", ref, func(workflow.Timer) (workflow.TimerChange, error) {
		return workflow.RetargetTimer(targetWorkingDays)
	})
}

// CycleTimerDisplayStyle advances the display style, wrapping 5 to 1.
func (t *Tracker) CycleTimerDisplayStyle(ctx context.Context, ref workflow.Ref) error {
	return t.applyTimer(ctx, "CycleTimerDisplayStyle", ref, func(cur workflow.Timer) (workflow.TimerChange, error) {
		return workflow.CycleTimerStyle(cur), nil
	})
}

func (t *Tracker) applyTimer(ctx context.Context, op string, ref workflow.Ref,
	change func(workflow.Timer) (workflow.TimerChange, error),
) error {
	t.logger.InfoContext(ctx, "updating timer",
		slog.String("operation", op),
		slog.String("entity", ref.Entity.String()),
		slog.String("key", ref.Key),
	)

	var err error
	switch ref.Entity {
	case workflow.EntityStage:
		_, err = t.patchStage(ctx, op, ref.Key, func(st workflow.Stage) (workflow.StagePatch, error) {
			c, err := change(st.Timer)
			return c.StagePatch(), err
		})
	case workflow.EntityTask:
		_, err = t.patchTask(ctx, op, ref.Key, func(task workflow.Task) (workflow.TaskPatch, error) {
			c, err := change(task.Timer)
			return c.TaskPatch(), err
		})
	default:
		err = domain.NewValidationError("entity", fmt.Sprintf("unknown entity %q", ref.Entity))
	}
	return err
}

package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/app/fanout"
	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

func newTask(ownerID, stageKey, title string, sortOrder int, now time.Time) workflow.Task {
	return workflow.Task{
		ID:        workflow.NewID(),
		OwnerID:   ownerID,
		StageKey:  stageKey,
		Title:     title,
		SortOrder: sortOrder,
		Timer:     workflow.Timer{DisplayStyle: workflow.DisplayStyleFirst},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddTask appends a task to the end of a stage.
func (t *Tracker) AddTask(ctx context.Context, stageKey, title string) (workflow.Task, error) {
	t.logger.InfoContext(ctx, "adding task", slog.String("stage_key", stageKey))

	tasks, err := t.addTasks(ctx, "AddTask", stageKey, []string{title})
	if err != nil {
		return workflow.Task{}, err
	}
	return tasks[0], nil
}

// AddBulkTasks appends tasks in the given order with one batched insert.
func (t *Tracker) AddBulkTasks(ctx context.Context, stageKey string, titles []string) ([]workflow.Task, error) {
	t.logger.InfoContext(ctx, "adding tasks", slog.String("stage_key", stageKey), slog.Int("count", len(titles)))

	if len(titles) == 0 {
		return nil, domain.NewValidationError("titles", domain.MsgRequired)
	}
	return t.addTasks(ctx, "AddBulkTasks", stageKey, titles)
}

func (t *Tracker) addTasks(ctx context.Context, op, stageKey string, titles []string) ([]workflow.Task, error) {
	clean := make([]string, len(titles))
	for i, title := range titles {
		clean[i] = strings.TrimSpace(title)
		if clean[i] == "" {
			return nil, domain.NewValidationError("title", fmt.Sprintf("%s (position %d)", domain.MsgRequired, i))
		}
	}

	var tasks []workflow.Task
	err := t.mutate(ctx, op,
		func(s workflow.State) ([]workflow.ChangeEvent, error) {
			if _, ok := s.StageByKey(stageKey); !ok {
				return nil, stageNotFound(stageKey)
			}
			now := t.now()
			next := s.MaxTaskOrder(stageKey) + 1
			tasks = make([]workflow.Task, len(clean))
			events := make([]workflow.ChangeEvent, len(clean))
			for i, title := range clean {
				tasks[i] = newTask(t.ownerID, stageKey, title, next+i, now)
				events[i] = workflow.TaskInserted(tasks[i])
			}
			return events, nil
		},
		func(ctx context.Context) error {
			return t.repo.InsertTasks(ctx, tasks)
		},
	)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ToggleTask flips completion. Completing stamps completedAt with the
// current time; reopening clears it.
func (t *Tracker) ToggleTask(ctx context.Context, taskID string) (workflow.Task, error) {
	t.logger.InfoContext(ctx, "toggling task", slog.String("task_id", taskID))

	return t.patchTask(ctx, "ToggleTask", taskID, func(cur workflow.Task) (workflow.TaskPatch, error) {
		if cur.Completed {
			return workflow.CompletionPatch(nil), nil
		}
		now := t.now()
		return workflow.CompletionPatch(&now), nil
	})
}

// UpdateTask renames a task.
func (t *Tracker) UpdateTask(ctx context.Context, taskID, title string) (workflow.Task, error) {
	t.logger.InfoContext(ctx, "updating task", slog.String("task_id", taskID))

	title = strings.TrimSpace(title)
	if title == "" {
		return workflow.Task{}, domain.NewValidationError("title", domain.MsgRequired)
	}
	return t.patchTask(ctx, "UpdateTask", taskID, func(workflow.Task) (workflow.TaskPatch, error) {
		return workflow.TaskPatch{Values: workflow.Task{Title: title}, Fields: workflow.TaskFieldTitle}, nil
	})
}

// UpdateTaskCompletedDate marks a task completed at a past date, or not
// completed when at is nil.
func (t *Tracker) UpdateTaskCompletedDate(ctx context.Context, taskID string, at *time.Time) (workflow.Task, error) {
	t.logger.InfoContext(ctx, "updating task completion date", slog.String("task_id", taskID))

	return t.patchTask(ctx, "UpdateTaskCompletedDate", taskID, func(workflow.Task) (workflow.TaskPatch, error) {
		return workflow.CompletionPatch(at), nil
	})
}

// UpdateTaskStyle patches the non-nil fields of style.
func (t *Tracker) UpdateTaskStyle(ctx context.Context, taskID string, style workflow.Style) (workflow.Task, error) {
	t.logger.InfoContext(ctx, "updating task style", slog.String("task_id", taskID))

	patch := workflow.StylePatch(style)
	if patch.Fields == 0 {
		return workflow.Task{}, domain.NewValidationError("style", "at least one field is required")
	}
	return t.patchTask(ctx, "UpdateTaskStyle", taskID, func(workflow.Task) (workflow.TaskPatch, error) {
		return patch, nil
	})
}

// patchTask applies a patch computed from the cached task and returns the
// patched task.
func (t *Tracker) patchTask(ctx context.Context, op, taskID string,
	build func(workflow.Task) (workflow.TaskPatch, error),
) (workflow.Task, error) {
	var (
		patch   workflow.TaskPatch
		updated workflow.Task
	)
	err := t.mutate(ctx, op,
		func(s workflow.State) ([]workflow.ChangeEvent, error) {
			cur, ok := s.TaskByID(taskID)
			if !ok {
				return nil, taskNotFound(taskID)
			}
			p, err := build(cur)
			if err != nil {
				return nil, err
			}
			p.Values.UpdatedAt = t.now()
			p.Fields |= workflow.TaskFieldUpdatedAt

			patch = p
			updated = cur
			updated.Merge(p.Values, p.Fields)
			return []workflow.ChangeEvent{workflow.TaskUpdated(updated, p.Fields)}, nil
		},
		func(ctx context.Context) error {
			return t.repo.UpdateTask(ctx, taskID, patch)
		},
	)
	if err != nil {
		return workflow.Task{}, err
	}
	return updated, nil
}

// DeleteTask removes one task.
func (t *Tracker) DeleteTask(ctx context.Context, taskID string) error {
	t.logger.InfoContext(ctx, "deleting task", slog.String("task_id", taskID))

	return t.mutate(ctx, "DeleteTask",
		func(s workflow.State) ([]workflow.ChangeEvent, error) {
			task, ok := s.TaskByID(taskID)
			if !ok {
				return nil, taskNotFound(taskID)
			}
			return []workflow.ChangeEvent{workflow.TaskDeleted(task)}, nil
		},
		func(ctx context.Context) error {
			return t.repo.DeleteTasks(ctx, []string{taskID})
		},
	)
}

// BulkDeleteTasks removes several tasks with one delete call per task run
// concurrently. Unknown ids are skipped.
func (t *Tracker) BulkDeleteTasks(ctx context.Context, taskIDs []string) error {
	t.logger.InfoContext(ctx, "bulk deleting tasks", slog.Int("count", len(taskIDs)))

	if len(taskIDs) == 0 {
		return domain.NewValidationError("task_ids", domain.MsgRequired)
	}

	var ids []string
	return t.mutate(ctx, "BulkDeleteTasks",
		func(s workflow.State) ([]workflow.ChangeEvent, error) {
			ids = ids[:0]
			var events []workflow.ChangeEvent
			for _, id := range taskIDs {
				if task, ok := s.TaskByID(id); ok {
					ids = append(ids, id)
					events = append(events, workflow.TaskDeleted(task))
				}
			}
			return events, nil
		},
		func(ctx context.Context) error {
			return fanout.Each(ctx, t.cfg.maxConcurrency, ids, func(ctx context.Context, id string) error {
				return t.repo.DeleteTasks(ctx, []string{id})
			})
		},
	)
}

package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/jsamuelsen11/stage-tracker/internal/app/fanout"
	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/telemetry"
)

type stageMove struct {
	id    string
	patch workflow.StagePatch
}

type taskMove struct {
	id    string
	patch workflow.TaskPatch
}

// ReorderStages sets each listed stage's sortOrder to its index in
// stageKeys. Stages left out follow the listed ones in their current order,
// so the owner's orders stay 0..n-1. The cache changes at once; only stages
// whose order changed are written, concurrently. Any failed write reverts
// the reorder and reloads the owner from the store.
func (t *Tracker) ReorderStages(ctx context.Context, stageKeys []string) error {
	t.logger.InfoContext(ctx, "reordering stages", slog.Int("count", len(stageKeys)))

	if _, err := workflow.PositionalOrder(stageKeys); err != nil {
		return err
	}

	var moves []stageMove
	err := t.mutate(ctx, "ReorderStages",
		func(s workflow.State) ([]workflow.ChangeEvent, error) {
			moves = moves[:0]
			now := t.now()
			full := workflow.CompleteOrder(stageKeys, stageKeysInOrder(s))
			order, err := workflow.PositionalOrder(full)
			if err != nil {
				return nil, err
			}
			var events []workflow.ChangeEvent
			for _, key := range full {
				st, ok := s.StageByKey(key)
				if !ok {
					return nil, stageNotFound(key)
				}
				if st.SortOrder == order[key] {
					continue
				}
				st.SortOrder = order[key]
				st.UpdatedAt = now
				fields := workflow.StageFieldSortOrder | workflow.StageFieldUpdatedAt
				moves = append(moves, stageMove{id: st.ID, patch: workflow.StagePatch{Values: st, Fields: fields}})
				events = append(events, workflow.StageUpdated(st, fields))
			}
			return events, nil
		},
		func(ctx context.Context) error {
			return fanout.Each(ctx, t.cfg.maxConcurrency, moves, func(ctx context.Context, m stageMove) error {
				return t.repo.UpdateStage(ctx, m.id, m.patch)
			})
		},
	)
	return t.resyncOnFailure(ctx, "ReorderStages", err)
}

// ReorderTasks sets each listed task's sortOrder to its index in taskIDs.
// Every id must belong to stageKey; the stage's other tasks follow in their
// current order. Failure handling matches ReorderStages.
func (t *Tracker) ReorderTasks(ctx context.Context, stageKey string, taskIDs []string) error {
	t.logger.InfoContext(ctx, "reordering tasks", slog.String("stage_key", stageKey), slog.Int("count", len(taskIDs)))

	if _, err := workflow.PositionalOrder(taskIDs); err != nil {
		return err
	}

	var moves []taskMove
	err := t.mutate(ctx, "ReorderTasks",
		func(s workflow.State) ([]workflow.ChangeEvent, error) {
			if _, ok := s.StageByKey(stageKey); !ok {
				return nil, stageNotFound(stageKey)
			}
			moves = moves[:0]
			now := t.now()
			full := workflow.CompleteOrder(taskIDs, taskIDsInOrder(s, stageKey))
			order, err := workflow.PositionalOrder(full)
			if err != nil {
				return nil, err
			}
			var events []workflow.ChangeEvent
			for _, id := range full {
				task, ok := s.TaskByID(id)
				if !ok {
					return nil, taskNotFound(id)
				}
				if task.StageKey != stageKey {
					return nil, domain.NewValidationError("task_ids", fmt.Sprintf("task %q is not in stage %q", id, stageKey))
				}
				if task.SortOrder == order[id] {
					continue
				}
				task.SortOrder = order[id]
				task.UpdatedAt = now
				fields := workflow.TaskFieldSortOrder | workflow.TaskFieldUpdatedAt
				moves = append(moves, taskMove{id: id, patch: workflow.TaskPatch{Values: task, Fields: fields}})
				events = append(events, workflow.TaskUpdated(task, fields))
			}
			return events, nil
		},
		func(ctx context.Context) error {
			return fanout.Each(ctx, t.cfg.maxConcurrency, moves, func(ctx context.Context, m taskMove) error {
				return t.repo.UpdateTask(ctx, m.id, m.patch)
			})
		},
	)
	return t.resyncOnFailure(ctx, "ReorderTasks", err)
}

func stageKeysInOrder(s workflow.State) []string {
	views := s.View()
	keys := make([]string, len(views))
	for i, v := range views {
		keys[i] = v.StageKey
	}
	return keys
}

func taskIDsInOrder(s workflow.State, stageKey string) []string {
	for _, v := range s.View() {
		if v.StageKey != stageKey {
			continue
		}
		ids := make([]string, len(v.Tasks))
		for i, task := range v.Tasks {
			ids[i] = task.ID
		}
		return ids
	}
	return nil
}

// resyncOnFailure reloads the owner after a rejected reorder. The reorder
// error is returned, joined with the reload error if that fails too.
func (t *Tracker) resyncOnFailure(ctx context.Context, op string, err error) error {
	if !errors.Is(err, domain.ErrPersistence) {
		return err
	}
	t.cfg.metrics.ReorderResyncTotal.Add(ctx, 1, metric.WithAttributes(telemetry.AttrOperation.String(op)))
	t.logger.WarnContext(ctx, "reorder failed, reloading from store", slog.String("operation", op))

	if _, rerr := t.LoadAll(context.WithoutCancel(ctx)); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

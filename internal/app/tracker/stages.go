package tracker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jsamuelsen11/stage-tracker/internal/app/fanout"
	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

// AddStage appends a stage with a fresh key after the owner's last stage.
func (t *Tracker) AddStage(ctx context.Context, name, icon string) (workflow.Stage, error) {
	t.logger.InfoContext(ctx, "adding stage", slog.String("name", name))

	name = strings.TrimSpace(name)
	if name == "" {
		return workflow.Stage{}, domain.NewValidationError("name", domain.MsgRequired)
	}
	if strings.TrimSpace(icon) == "" {
		icon = workflow.DefaultStageIcon
	}

	var st workflow.Stage
	err := t.mutate(ctx, "AddStage",
		func(s workflow.State) ([]workflow.ChangeEvent, error) {
			now := t.now()
			st = workflow.Stage{
				ID:        workflow.NewID(),
				OwnerID:   t.ownerID,
				StageKey:  workflow.NewStageKey(),
				Name:      name,
				Icon:      icon,
				SortOrder: s.MaxStageOrder() + 1,
				Timer:     workflow.Timer{DisplayStyle: workflow.DisplayStyleFirst},
				CreatedAt: now,
				UpdatedAt: now,
			}
			return []workflow.ChangeEvent{workflow.StageInserted(st)}, nil
		},
		func(ctx context.Context) error {
			return t.repo.InsertStages(ctx, []workflow.Stage{st})
		},
	)
	if err != nil {
		return workflow.Stage{}, err
	}
	return st, nil
}

// UpdateStage renames a stage and, when icon is non-nil, changes its icon.
func (t *Tracker) UpdateStage(ctx context.Context, stageKey, name string, icon *string) (workflow.Stage, error) {
	t.logger.InfoContext(ctx, "updating stage", slog.String("stage_key", stageKey))

	name = strings.TrimSpace(name)
	if name == "" {
		return workflow.Stage{}, domain.NewValidationError("name", domain.MsgRequired)
	}
	return t.patchStage(ctx, "UpdateStage", stageKey, func(workflow.Stage) (workflow.StagePatch, error) {
		p := workflow.StagePatch{Values: workflow.Stage{Name: name}, Fields: workflow.StageFieldName}
		if icon != nil {
			p.Values.Icon = *icon
			p.Fields |= workflow.StageFieldIcon
		}
		return p, nil
	})
}

// AssignStageToFolder files a stage under folderID, or removes it from its
// folder when folderID is nil.
func (t *Tracker) AssignStageToFolder(ctx context.Context, stageKey string, folderID *string) (workflow.Stage, error) {
	t.logger.InfoContext(ctx, "assigning stage to folder", slog.String("stage_key", stageKey))

	return t.patchStage(ctx, "AssignStageToFolder", stageKey, func(workflow.Stage) (workflow.StagePatch, error) {
		return workflow.StagePatch{Values: workflow.Stage{FolderID: folderID}, Fields: workflow.StageFieldFolder}, nil
	})
}

// patchStage applies a patch computed from the cached stage and returns the
// patched stage.
func (t *Tracker) patchStage(ctx context.Context, op, stageKey string,
	build func(workflow.Stage) (workflow.StagePatch, error),
) (workflow.Stage, error) {
	var (
		id      string
		patch   workflow.StagePatch
		updated workflow.Stage
	)
	err := t.mutate(ctx, op,
		func(s workflow.State) ([]workflow.ChangeEvent, error) {
			st, ok := s.StageByKey(stageKey)
			if !ok {
				return nil, stageNotFound(stageKey)
			}
			p, err := build(st)
			if err != nil {
				return nil, err
			}
			p.Values.UpdatedAt = t.now()
			p.Fields |= workflow.StageFieldUpdatedAt

			id, patch = st.ID, p
			updated = st
			updated.Merge(p.Values, p.Fields)
			return []workflow.ChangeEvent{workflow.StageUpdated(updated, p.Fields)}, nil
		},
		func(ctx context.Context) error {
			return t.repo.UpdateStage(ctx, id, patch)
		},
	)
	if err != nil {
		return workflow.Stage{}, err
	}
	return updated, nil
}

// DeleteStage removes a stage and every task under it. Tasks are deleted
// from the store first, then the stage.
func (t *Tracker) DeleteStage(ctx context.Context, stageKey string) error {
	t.logger.InfoContext(ctx, "deleting stage", slog.String("stage_key", stageKey))

	var st workflow.Stage
	return t.mutate(ctx, "DeleteStage",
		func(s workflow.State) ([]workflow.ChangeEvent, error) {
			var ok bool
			if st, ok = s.StageByKey(stageKey); !ok {
				return nil, stageNotFound(stageKey)
			}
			return cascadeEvents(s, st), nil
		},
		func(ctx context.Context) error {
			return t.deleteStageRows(ctx, st)
		},
	)
}

// BulkDeleteStages removes several stages and their tasks, one cascade per
// stage run concurrently. Unknown keys are skipped.
func (t *Tracker) BulkDeleteStages(ctx context.Context, stageKeys []string) error {
	t.logger.InfoContext(ctx, "bulk deleting stages", slog.Int("count", len(stageKeys)))

	if len(stageKeys) == 0 {
		return domain.NewValidationError("stage_keys", domain.MsgRequired)
	}

	var targets []workflow.Stage
	return t.mutate(ctx, "BulkDeleteStages",
		func(s workflow.State) ([]workflow.ChangeEvent, error) {
			targets = targets[:0]
			var events []workflow.ChangeEvent
			for _, key := range stageKeys {
				if st, ok := s.StageByKey(key); ok {
					targets = append(targets, st)
					events = append(events, cascadeEvents(s, st)...)
				}
			}
			return events, nil
		},
		func(ctx context.Context) error {
			return fanout.Each(ctx, t.cfg.maxConcurrency, targets, t.deleteStageRows)
		},
	)
}

func (t *Tracker) deleteStageRows(ctx context.Context, st workflow.Stage) error {
	if err := t.repo.DeleteTasksByStage(ctx, t.ownerID, []string{st.StageKey}); err != nil {
		return err
	}
	return t.repo.DeleteStages(ctx, []string{st.ID})
}

func cascadeEvents(s workflow.State, st workflow.Stage) []workflow.ChangeEvent {
	tasks := s.TasksOf(st.StageKey)
	events := make([]workflow.ChangeEvent, 0, len(tasks)+1)
	for _, task := range tasks {
		events = append(events, workflow.TaskDeleted(task))
	}
	return append(events, workflow.StageDeleted(st))
}

// CopyStageData exports a stage and its task titles without identifiers.
func (t *Tracker) CopyStageData(stageKey string) (workflow.StageSnapshot, error) {
	for _, v := range t.Stages() {
		if v.StageKey == stageKey {
			return workflow.Snapshot(v), nil
		}
	}
	return workflow.StageSnapshot{}, stageNotFound(stageKey)
}

// PasteStageData creates a "(copy)" stage from snap after the last stage.
// Every pasted task starts not completed. The owner is reloaded on success.
// A failure after the stage was stored is a *domain.ConsistencyRiskError.
func (t *Tracker) PasteStageData(ctx context.Context, snap workflow.StageSnapshot) (workflow.Stage, error) {
	t.logger.InfoContext(ctx, "pasting stage", slog.String("name", snap.Name), slog.Int("tasks", len(snap.Tasks)))

	if err := snap.Validate(); err != nil {
		return workflow.Stage{}, err
	}
	icon := snap.Icon
	if strings.TrimSpace(icon) == "" {
		icon = workflow.DefaultStageIcon
	}

	var (
		st          workflow.Stage
		tasks       []workflow.Task
		stageStored bool
	)
	err := t.mutate(ctx, "PasteStageData",
		func(s workflow.State) ([]workflow.ChangeEvent, error) {
			now := t.now()
			st = workflow.Stage{
				ID:        workflow.NewID(),
				OwnerID:   t.ownerID,
				StageKey:  workflow.NewStageKey(),
				Name:      snap.PastedName(),
				Icon:      icon,
				SortOrder: s.MaxStageOrder() + 1,
				Timer:     workflow.Timer{DisplayStyle: workflow.DisplayStyleFirst},
				CreatedAt: now,
				UpdatedAt: now,
			}
			events := []workflow.ChangeEvent{workflow.StageInserted(st)}
			tasks = make([]workflow.Task, 0, len(snap.Tasks))
			for i, src := range snap.Tasks {
				task := newTask(t.ownerID, st.StageKey, strings.TrimSpace(src.Title), i, now)
				tasks = append(tasks, task)
				events = append(events, workflow.TaskInserted(task))
			}
			return events, nil
		},
		func(ctx context.Context) error {
			if err := t.repo.InsertStages(ctx, []workflow.Stage{st}); err != nil {
				return err
			}
			stageStored = true
			if len(tasks) == 0 {
				return nil
			}
			return t.repo.InsertTasks(ctx, tasks)
		},
	)
	if err != nil {
		if stageStored {
			return workflow.Stage{}, &domain.ConsistencyRiskError{
				Op:      "PasteStageData",
				State:   "INSERTING_TASKS",
				Orphans: []string{st.StageKey},
				Err:     err,
			}
		}
		return workflow.Stage{}, err
	}

	if _, err := t.LoadAll(ctx); err != nil {
		return st, err
	}
	return st, nil
}

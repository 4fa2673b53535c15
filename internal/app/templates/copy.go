package templates

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

// CopyStagesFromOwner copies stages of source, all of them when stageKeys is
// empty, after target's last stage under fresh keys. Tasks keep their
// titles and order and start not completed. The target is reloaded and the
// new stage keys are returned in copy order.
func (m *Manager) CopyStagesFromOwner(ctx context.Context, sourceOwnerID, targetOwnerID string, stageKeys []string, folderID *string) ([]string, error) {
	m.logger.InfoContext(ctx, "copying stages between owners",
		slog.String("source_owner_id", sourceOwnerID),
		slog.String("target_owner_id", targetOwnerID),
		slog.Int("requested", len(stageKeys)),
	)

	src, err := m.load(ctx, sourceOwnerID)
	if err != nil {
		return nil, m.fail(ctx, "CopyStagesFromOwner", err)
	}
	picked, err := pickStages(src, stageKeys)
	if err != nil {
		return nil, err
	}

	target, err := m.trackers.Owner(ctx, targetOwnerID)
	if err != nil {
		return nil, m.fail(ctx, "CopyStagesFromOwner", err)
	}
	dst, err := target.LoadAll(ctx)
	if err != nil {
		return nil, m.fail(ctx, "CopyStagesFromOwner", err)
	}

	wctx := context.WithoutCancel(ctx)
	now := m.now().UTC()
	next := nextStageOrder(dst)
	stages := make([]workflow.Stage, 0, len(picked))
	var tasks []workflow.Task
	for i, v := range picked {
		st := workflow.Stage{
			ID:        workflow.NewID(),
			OwnerID:   targetOwnerID,
			StageKey:  workflow.NewStageKey(),
			Name:      v.Name,
			Icon:      v.Icon,
			SortOrder: next + i,
			Timer:     workflow.Timer{DisplayStyle: workflow.DisplayStyleFirst},
			FolderID:  folderID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		stages = append(stages, st)
		for _, task := range v.Tasks {
			tasks = append(tasks, workflow.Task{
				ID:        workflow.NewID(),
				OwnerID:   targetOwnerID,
				StageKey:  st.StageKey,
				Title:     task.Title,
				SortOrder: task.SortOrder,
				Timer:     workflow.Timer{DisplayStyle: workflow.DisplayStyleFirst},
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
	}

	keys := make([]string, len(stages))
	for i, st := range stages {
		keys[i] = st.StageKey
	}
	if len(stages) == 0 {
		return keys, nil
	}

	if err := m.repo.InsertStages(wctx, stages); err != nil {
		return nil, m.fail(ctx, "CopyStagesFromOwner", domain.Persistence("InsertStages", err))
	}
	if len(tasks) > 0 {
		if err := m.repo.InsertTasks(wctx, tasks); err != nil {
			return nil, m.fail(ctx, "CopyStagesFromOwner", &domain.ConsistencyRiskError{
				Op:      "CopyStagesFromOwner",
				State:   "INSERTING_TASKS",
				Orphans: keys,
				Err:     domain.Persistence("InsertTasks", err),
			})
		}
	}

	if _, err := target.LoadAll(wctx); err != nil {
		return keys, m.fail(ctx, "CopyStagesFromOwner", err)
	}
	return keys, nil
}

func pickStages(views []workflow.StageView, keys []string) ([]workflow.StageView, error) {
	if len(keys) == 0 {
		return views, nil
	}
	byKey := make(map[string]workflow.StageView, len(views))
	for _, v := range views {
		byKey[v.StageKey] = v
	}
	out := make([]workflow.StageView, 0, len(keys))
	for _, k := range keys {
		v, ok := byKey[k]
		if !ok {
			return nil, fmt.Errorf("stage %q: %w", k, domain.ErrNotFound)
		}
		out = append(out, v)
	}
	return out, nil
}

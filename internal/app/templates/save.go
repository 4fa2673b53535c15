package templates

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

// SaveAsTemplate snapshots every stage and task of an owner. Without
// includeContent only names, icons, order, stage targets and task titles are
// kept; with it task styling, timers and progress are captured as well.
func (m *Manager) SaveAsTemplate(ctx context.Context, ownerID, name string, includeContent bool, description *string) (template.Template, error) {
	m.logger.InfoContext(ctx, "saving owner as template",
		slog.String("owner_id", ownerID),
		slog.Bool("include_content", includeContent),
	)

	if strings.TrimSpace(name) == "" {
		return template.Template{}, domain.NewValidationError("name", domain.MsgRequired)
	}
	views, err := m.load(ctx, ownerID)
	if err != nil {
		return template.Template{}, m.fail(ctx, "SaveAsTemplate", err)
	}

	tpl := m.header(name, description, true)
	stages, tasks := snapshot(tpl.ID, views, includeContent)
	if err := m.store(ctx, "SaveAsTemplate", tpl, stages, tasks); err != nil {
		return template.Template{}, err
	}
	return m.GetTemplate(ctx, tpl.ID)
}

// SaveStageAsTemplate snapshots one stage and its task titles as a
// single-stage template.
func (m *Manager) SaveStageAsTemplate(ctx context.Context, ownerID, stageKey, name string, description *string) (template.Template, error) {
	m.logger.InfoContext(ctx, "saving stage as template",
		slog.String("owner_id", ownerID),
		slog.String("stage_key", stageKey),
	)

	if strings.TrimSpace(name) == "" {
		return template.Template{}, domain.NewValidationError("name", domain.MsgRequired)
	}
	views, err := m.load(ctx, ownerID)
	if err != nil {
		return template.Template{}, m.fail(ctx, "SaveStageAsTemplate", err)
	}

	var picked []workflow.StageView
	for _, v := range views {
		if v.StageKey == stageKey {
			v.SortOrder = 0
			picked = append(picked, v)
			break
		}
	}
	if len(picked) == 0 {
		return template.Template{}, fmt.Errorf("stage %q: %w", stageKey, domain.ErrNotFound)
	}

	tpl := m.header(name, description, false)
	stages, tasks := snapshot(tpl.ID, picked, false)
	if err := m.store(ctx, "SaveStageAsTemplate", tpl, stages, tasks); err != nil {
		return template.Template{}, err
	}
	return m.GetTemplate(ctx, tpl.ID)
}

// load reloads the owner's tracker so the snapshot reflects the store.
func (m *Manager) load(ctx context.Context, ownerID string) ([]workflow.StageView, error) {
	tr, err := m.trackers.Owner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return tr.LoadAll(ctx)
}

func snapshot(templateID string, views []workflow.StageView, includeContent bool) ([]template.Stage, []template.Task) {
	stages := make([]template.Stage, 0, len(views))
	var tasks []template.Task
	for _, v := range views {
		ts := template.StageFrom(v.Stage, templateID, v.SortOrder)
		stages = append(stages, ts)
		for _, task := range v.Tasks {
			tasks = append(tasks, template.TaskFrom(task, templateID, ts.ID, includeContent))
		}
	}
	return stages, tasks
}

package templates

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/telemetry"
)

// ApplyTemplate materializes a template after the owner's existing stages
// and reloads the owner. The run moves through PREPARING, INSERTING_STAGES,
// INSERTING_TASKS and RELOADING to DONE, or to FAILED. Stages written
// before a task failure are not rolled back: the error is a
// *domain.ConsistencyRiskError naming them and the report lists them.
func (m *Manager) ApplyTemplate(ctx context.Context, ownerID, templateID string, opts template.ApplyOptions) (template.ApplyReport, error) {
	m.logger.InfoContext(ctx, "applying template",
		slog.String("owner_id", ownerID),
		slog.String("template_id", templateID),
		slog.Bool("include_content", opts.IncludeContent),
	)

	report := template.ApplyReport{TemplateID: templateID}
	report.Advance(template.StatePreparing)

	err := m.apply(ctx, ownerID, templateID, opts, &report)
	result := "success"
	if err != nil {
		result = "failure"
		report.Advance(template.StateFailed)
		m.logger.ErrorContext(ctx, "template apply failed",
			slog.String("operation", "ApplyTemplate"),
			slog.String("template_id", templateID),
			slog.String("owner_id", ownerID),
			slog.Any("transitions", report.Transitions),
			slog.Any("error", err),
		)
	}
	m.metrics.TemplateApplyTotal.Add(ctx, 1, metric.WithAttributes(telemetry.AttrResult.String(result)))
	return report, err
}

func (m *Manager) apply(ctx context.Context, ownerID, templateID string, opts template.ApplyOptions, report *template.ApplyReport) error {
	if _, err := m.repo.GetTemplate(ctx, templateID); err != nil {
		return domain.Persistence("GetTemplate", err)
	}
	tstages, err := m.repo.ListTemplateStages(ctx, templateID)
	if err != nil {
		return domain.Persistence("ListTemplateStages", err)
	}
	tr, err := m.trackers.Owner(ctx, ownerID)
	if err != nil {
		return err
	}
	views, err := tr.LoadAll(ctx)
	if err != nil {
		return err
	}

	// Writes below run to completion even if the caller goes away.
	wctx := context.WithoutCancel(ctx)

	report.Advance(template.StateInsertingStages)
	now := m.now().UTC()
	next := nextStageOrder(views)
	stages := make([]workflow.Stage, len(tstages))
	keyOf := make(map[string]string, len(tstages))
	for i, ts := range tstages {
		stages[i] = workflow.Stage{
			ID:        workflow.NewID(),
			OwnerID:   ownerID,
			StageKey:  workflow.NewStageKey(),
			Name:      ts.Name,
			Icon:      ts.Icon,
			SortOrder: next + i,
			Timer:     workflow.Timer{TargetWorkingDays: ts.TargetWorkingDays, DisplayStyle: workflow.DisplayStyleFirst},
			FolderID:  opts.FolderID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		keyOf[ts.ID] = stages[i].StageKey
	}
	if len(stages) > 0 {
		if err := m.repo.InsertStages(wctx, stages); err != nil {
			return domain.Persistence("InsertStages", err)
		}
	}
	for _, st := range stages {
		report.StageKeys = append(report.StageKeys, st.StageKey)
	}

	report.Advance(template.StateInsertingTasks)
	created, err := m.materializeTasks(wctx, ownerID, tstages, keyOf, opts.IncludeContent, now)
	if err != nil {
		return &domain.ConsistencyRiskError{
			Op:      "ApplyTemplate",
			State:   template.StateInsertingTasks.String(),
			Orphans: slices.Clone(report.StageKeys),
			Err:     err,
		}
	}
	report.TasksCreated = created

	report.Advance(template.StateReloading)
	if _, err := tr.LoadAll(wctx); err != nil {
		return err
	}
	report.Advance(template.StateDone)
	return nil
}

func (m *Manager) materializeTasks(ctx context.Context, ownerID string, tstages []template.Stage,
	keyOf map[string]string, includeContent bool, now time.Time,
) (int, error) {
	if len(tstages) == 0 {
		return 0, nil
	}
	ids := make([]string, len(tstages))
	for i, ts := range tstages {
		ids[i] = ts.ID
	}
	ttasks, err := m.repo.ListTemplateTasks(ctx, ids)
	if err != nil {
		return 0, domain.Persistence("ListTemplateTasks", err)
	}
	if len(ttasks) == 0 {
		return 0, nil
	}

	tasks := make([]workflow.Task, 0, len(ttasks))
	for _, tt := range ttasks {
		key, ok := keyOf[tt.TemplateStageID]
		if !ok {
			return 0, fmt.Errorf("template task %s: stage %s: %w", tt.ID, tt.TemplateStageID, domain.ErrNotFound)
		}
		task := tt.Materialize(ownerID, key, includeContent)
		task.CreatedAt = now
		task.UpdatedAt = now
		tasks = append(tasks, task)
	}
	if err := m.repo.InsertTasks(ctx, tasks); err != nil {
		return 0, domain.Persistence("InsertTasks", err)
	}
	return len(tasks), nil
}

func nextStageOrder(views []workflow.StageView) int {
	next := 0
	for _, v := range views {
		next = max(next, v.SortOrder+1)
	}
	return next
}

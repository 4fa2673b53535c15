// Package templates implements the template manager: snapshotting an
// owner's stages and tasks into reusable templates and materializing
// templates back into owners. Materialization writes straight through the
// repositories and then reloads the owner's tracker; it is not optimistic.
package templates

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/telemetry"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// Compile-time interface check.
var _ ports.TemplateService = (*Manager)(nil)

// DefaultIcon is used for templates saved without an icon.
const DefaultIcon = "LayoutTemplate"

// Repository is the storage the manager reads and writes.
type Repository interface {
	ports.StageRepository
	ports.TaskRepository
	ports.TemplateRepository
}

// Manager implements ports.TemplateService.
type Manager struct {
	repo     Repository
	trackers ports.TrackerService
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records template applies on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(mg *Manager) {
		if m != nil {
			mg.metrics = m
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(mg *Manager) {
		mg.now = now
	}
}

// NewManager creates a Manager. Owner state is read from and reloaded into
// the trackers handed out by trackers.
func NewManager(repo Repository, trackers ports.TrackerService, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		repo:     repo,
		trackers: trackers,
		logger:   logger,
		metrics:  telemetry.NopMetrics(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListTemplates returns every template, newest first, with its stages and
// task count.
func (m *Manager) ListTemplates(ctx context.Context) ([]template.Template, error) {
	m.logger.InfoContext(ctx, "listing templates")

	list, err := m.repo.ListTemplates(ctx)
	if err != nil {
		return nil, m.fail(ctx, "ListTemplates", domain.Persistence("ListTemplates", err))
	}
	return list, nil
}

// GetTemplate returns one template with its ordered stages.
func (m *Manager) GetTemplate(ctx context.Context, id string) (template.Template, error) {
	m.logger.InfoContext(ctx, "fetching template", slog.String("template_id", id))

	tpl, err := m.repo.GetTemplate(ctx, id)
	if err != nil {
		return template.Template{}, m.fail(ctx, "GetTemplate", domain.Persistence("GetTemplate", err))
	}
	return tpl, nil
}

// UpdateTemplate changes the header fields set in u.
func (m *Manager) UpdateTemplate(ctx context.Context, id string, u template.Update) (template.Template, error) {
	m.logger.InfoContext(ctx, "updating template", slog.String("template_id", id))

	if u.IsEmpty() {
		return template.Template{}, domain.NewValidationError("update", "at least one field is required")
	}
	if err := u.Validate(); err != nil {
		return template.Template{}, err
	}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
	}
	if err := m.repo.UpdateTemplate(ctx, id, u); err != nil {
		return template.Template{}, m.fail(ctx, "UpdateTemplate", domain.Persistence("UpdateTemplate", err))
	}
	return m.GetTemplate(ctx, id)
}

// DeleteTemplate removes the template header. Its stages and tasks go with
// it through the store's cascade.
func (m *Manager) DeleteTemplate(ctx context.Context, id string) error {
	m.logger.InfoContext(ctx, "deleting template", slog.String("template_id", id))

	if err := m.repo.DeleteTemplate(ctx, id); err != nil {
		return m.fail(ctx, "DeleteTemplate", domain.Persistence("DeleteTemplate", err))
	}
	return nil
}

// ExportTemplate returns a template with every stage and task.
func (m *Manager) ExportTemplate(ctx context.Context, id string) (template.Bundle, error) {
	m.logger.InfoContext(ctx, "exporting template", slog.String("template_id", id))

	tpl, err := m.repo.GetTemplate(ctx, id)
	if err != nil {
		return template.Bundle{}, m.fail(ctx, "ExportTemplate", domain.Persistence("GetTemplate", err))
	}
	stages, tasks, err := m.content(ctx, id)
	if err != nil {
		return template.Bundle{}, m.fail(ctx, "ExportTemplate", err)
	}
	tpl.Stages = nil
	return template.Bundle{Template: tpl, Stages: stages, Tasks: tasks}, nil
}

// ImportTemplate stores a bundle under fresh ids and returns the new
// template.
func (m *Manager) ImportTemplate(ctx context.Context, b template.Bundle) (template.Template, error) {
	m.logger.InfoContext(ctx, "importing template", slog.String("name", b.Template.Name))

	if err := b.Template.Validate(); err != nil {
		return template.Template{}, err
	}

	tpl := m.header(b.Template.Name, b.Template.Description, b.Template.MultiStage)
	if b.Template.Icon != "" {
		tpl.Icon = b.Template.Icon
	}
	tpl.Color = b.Template.Color

	stageIDs := make(map[string]string, len(b.Stages))
	stages := make([]template.Stage, len(b.Stages))
	for i, st := range b.Stages {
		stageIDs[st.ID] = workflow.NewID()
		st.ID = stageIDs[st.ID]
		st.TemplateID = tpl.ID
		stages[i] = st
	}
	tasks := make([]template.Task, 0, len(b.Tasks))
	for _, task := range b.Tasks {
		sid, ok := stageIDs[task.TemplateStageID]
		if !ok {
			return template.Template{}, domain.NewValidationError("tasks",
				fmt.Sprintf("task %q references unknown stage %q", task.Title, task.TemplateStageID))
		}
		task.ID = workflow.NewID()
		task.TemplateID = tpl.ID
		task.TemplateStageID = sid
		tasks = append(tasks, task)
	}

	if err := m.store(ctx, "ImportTemplate", tpl, stages, tasks); err != nil {
		return template.Template{}, err
	}
	return m.GetTemplate(ctx, tpl.ID)
}

// content loads the stages of a template and the tasks under them.
func (m *Manager) content(ctx context.Context, templateID string) ([]template.Stage, []template.Task, error) {
	stages, err := m.repo.ListTemplateStages(ctx, templateID)
	if err != nil {
		return nil, nil, domain.Persistence("ListTemplateStages", err)
	}
	if len(stages) == 0 {
		return stages, []template.Task{}, nil
	}
	ids := make([]string, len(stages))
	for i, st := range stages {
		ids[i] = st.ID
	}
	tasks, err := m.repo.ListTemplateTasks(ctx, ids)
	if err != nil {
		return nil, nil, domain.Persistence("ListTemplateTasks", err)
	}
	return stages, tasks, nil
}

func (m *Manager) header(name string, description *string, multiStage bool) template.Template {
	return template.Template{
		ID:          workflow.NewID(),
		Name:        strings.TrimSpace(name),
		Description: description,
		Icon:        DefaultIcon,
		MultiStage:  multiStage,
		CreatedAt:   m.now().UTC(),
	}
}

// store writes a template header and its content. When the content fails
// the header is deleted again, which cascades to whatever was written.
func (m *Manager) store(ctx context.Context, op string, tpl template.Template, stages []template.Stage, tasks []template.Task) error {
	if err := m.repo.CreateTemplate(ctx, tpl); err != nil {
		return m.fail(ctx, op, domain.Persistence("CreateTemplate", err))
	}

	err := domain.Persistence("InsertTemplateStages", m.insertStages(ctx, stages))
	if err == nil && len(tasks) > 0 {
		err = domain.Persistence("InsertTemplateTasks", m.repo.InsertTemplateTasks(ctx, tasks))
	}
	if err == nil {
		return nil
	}

	if derr := m.repo.DeleteTemplate(context.WithoutCancel(ctx), tpl.ID); derr != nil {
		m.logger.ErrorContext(ctx, "failed to remove partial template",
			slog.String("operation", op),
			slog.String("template_id", tpl.ID),
			slog.Any("error", derr),
		)
	}
	return m.fail(ctx, op, err)
}

func (m *Manager) insertStages(ctx context.Context, stages []template.Stage) error {
	if len(stages) == 0 {
		return nil
	}
	return m.repo.InsertTemplateStages(ctx, stages)
}

func (m *Manager) fail(ctx context.Context, op string, err error) error {
	m.logger.ErrorContext(ctx, "template operation failed",
		slog.String("operation", op),
		slog.Any("error", err),
	)
	return err
}

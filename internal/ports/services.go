package ports

import (
	"context"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

// TrackerService hands out the live tracker of an owner.
// Implemented by the application layer; called by handlers and the template
// manager.
type TrackerService interface {
	// Owner returns the tracker for ownerID, loading its state and opening
	// its change-feed subscriptions on first use.
	Owner(ctx context.Context, ownerID string) (OwnerTracker, error)
}

// OwnerTracker is the in-memory authoritative cache of one owner's stages
// and tasks. Mutations are applied to the cache optimistically and reverted
// if the store rejects them.
type OwnerTracker interface {
	OwnerID() string

	// Stages returns the current cached view without touching the store.
	Stages() []workflow.StageView

	// LoadAll replaces the cache from the store, removing duplicate tasks.
	LoadAll(ctx context.Context) ([]workflow.StageView, error)

	AddStage(ctx context.Context, name, icon string) (workflow.Stage, error)
	AddTask(ctx context.Context, stageKey, title string) (workflow.Task, error)
	AddBulkTasks(ctx context.Context, stageKey string, titles []string) ([]workflow.Task, error)

	ToggleTask(ctx context.Context, taskID string) (workflow.Task, error)
	UpdateTask(ctx context.Context, taskID, title string) (workflow.Task, error)
	UpdateStage(ctx context.Context, stageKey, name string, icon *string) (workflow.Stage, error)
	UpdateTaskCompletedDate(ctx context.Context, taskID string, at *time.Time) (workflow.Task, error)
	UpdateTaskStyle(ctx context.Context, taskID string, style workflow.Style) (workflow.Task, error)
	AssignStageToFolder(ctx context.Context, stageKey string, folderID *string) (workflow.Stage, error)

	DeleteTask(ctx context.Context, taskID string) error
	BulkDeleteTasks(ctx context.Context, taskIDs []string) error
	DeleteStage(ctx context.Context, stageKey string) error
	BulkDeleteStages(ctx context.Context, stageKeys []string) error

	// CopyStageData exports a stage without identifiers.
	// Returns domain.ErrNotFound if the stage is not cached.
	CopyStageData(stageKey string) (workflow.StageSnapshot, error)

	// PasteStageData creates a "(copy)" stage from a snapshot with every
	// task not completed, then reloads.
	PasteStageData(ctx context.Context, snap workflow.StageSnapshot) (workflow.Stage, error)

	// ReorderStages sets each stage's sortOrder to its index in stageKeys.
	ReorderStages(ctx context.Context, stageKeys []string) error

	// ReorderTasks sets each task's sortOrder to its index in taskIDs.
	ReorderTasks(ctx context.Context, stageKey string, taskIDs []string) error

	StartTimer(ctx context.Context, ref workflow.Ref, targetWorkingDays int) error
	StopTimer(ctx context.Context, ref workflow.Ref) error
	UpdateTimerTarget(ctx context.Context, ref workflow.Ref, targetWorkingDays int) error
	CycleTimerDisplayStyle(ctx context.Context, ref workflow.Ref) error

	// Summary digests the cached view.
	Summary() workflow.Summary

	// Watch streams every change applied to the cache until ctx is done.
	Watch(ctx context.Context) <-chan workflow.ChangeEvent
}

// TemplateService manages reusable templates.
type TemplateService interface {
	ListTemplates(ctx context.Context) ([]template.Template, error)

	// GetTemplate returns a template with its ordered stages.
	// Returns domain.ErrNotFound if the template does not exist.
	GetTemplate(ctx context.Context, id string) (template.Template, error)

	// SaveAsTemplate snapshots all stages and tasks of an owner.
	SaveAsTemplate(ctx context.Context, ownerID, name string, includeContent bool, description *string) (template.Template, error)

	// SaveStageAsTemplate snapshots a single stage's task titles.
	SaveStageAsTemplate(ctx context.Context, ownerID, stageKey, name string, description *string) (template.Template, error)

	// ApplyTemplate materializes a template after the owner's existing
	// stages. A failure after stages were written returns a
	// *domain.ConsistencyRiskError.
	ApplyTemplate(ctx context.Context, ownerID, templateID string, opts template.ApplyOptions) (template.ApplyReport, error)

	UpdateTemplate(ctx context.Context, id string, u template.Update) (template.Template, error)

	// DeleteTemplate removes the template header; the store cascades.
	DeleteTemplate(ctx context.Context, id string) error

	// CopyStagesFromOwner copies the given (or all) stages of source into
	// target with completion reset, returning the new stage keys.
	CopyStagesFromOwner(ctx context.Context, sourceOwnerID, targetOwnerID string, stageKeys []string, folderID *string) ([]string, error)

	// ExportTemplate returns a template with all of its content.
	ExportTemplate(ctx context.Context, id string) (template.Bundle, error)

	// ImportTemplate stores a bundle under fresh ids.
	ImportTemplate(ctx context.Context, b template.Bundle) (template.Template, error)
}

package ports

import (
	"context"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

// StageRepository is durable storage for stages.
// Implemented by the storage adapters; called by the application layer.
type StageRepository interface {
	// ListStages returns all stages of an owner ordered by sortOrder.
	ListStages(ctx context.Context, ownerID string) ([]workflow.Stage, error)

	// InsertStages persists new stages as one batch. Ids, keys and
	// timestamps are supplied by the caller.
	// Returns domain.ErrConflict if a stage key is already used by the owner.
	InsertStages(ctx context.Context, stages []workflow.Stage) error

	// UpdateStage writes the flagged fields of patch to the stage with id.
	// Returns domain.ErrNotFound if the stage does not exist.
	UpdateStage(ctx context.Context, id string, patch workflow.StagePatch) error

	// DeleteStages removes stages by id. Missing ids are ignored. Tasks are
	// not cascaded; callers delete them first.
	DeleteStages(ctx context.Context, ids []string) error
}

// TaskRepository is durable storage for tasks.
type TaskRepository interface {
	// ListTasks returns all tasks of an owner ordered by sortOrder.
	ListTasks(ctx context.Context, ownerID string) ([]workflow.Task, error)

	// InsertTasks persists new tasks as one batch.
	InsertTasks(ctx context.Context, tasks []workflow.Task) error

	// UpdateTask writes the flagged fields of patch to the task with id.
	// Returns domain.ErrNotFound if the task does not exist.
	UpdateTask(ctx context.Context, id string, patch workflow.TaskPatch) error

	// DeleteTasks removes tasks by id. Missing ids are ignored.
	DeleteTasks(ctx context.Context, ids []string) error

	// DeleteTasksByStage removes every task of the owner under the given
	// stage keys.
	DeleteTasksByStage(ctx context.Context, ownerID string, stageKeys []string) error
}

// TemplateRepository is durable storage for templates. Deleting a template
// header removes its stages and tasks through the store's own cascade.
type TemplateRepository interface {
	// ListTemplates returns template headers, newest first.
	ListTemplates(ctx context.Context) ([]template.Template, error)

	// GetTemplate returns a template header.
	// Returns domain.ErrNotFound if the template does not exist.
	GetTemplate(ctx context.Context, id string) (template.Template, error)

	// CreateTemplate persists a template header.
	CreateTemplate(ctx context.Context, t template.Template) error

	// UpdateTemplate changes the non-nil fields of u.
	// Returns domain.ErrNotFound if the template does not exist.
	UpdateTemplate(ctx context.Context, id string, u template.Update) error

	// DeleteTemplate removes a template header and, by cascade, its content.
	// Returns domain.ErrNotFound if the template does not exist.
	DeleteTemplate(ctx context.Context, id string) error

	// InsertTemplateStages persists template stages as one batch.
	InsertTemplateStages(ctx context.Context, stages []template.Stage) error

	// ListTemplateStages returns the stages of a template ordered by sortOrder.
	ListTemplateStages(ctx context.Context, templateID string) ([]template.Stage, error)

	// InsertTemplateTasks persists template tasks as one batch.
	InsertTemplateTasks(ctx context.Context, tasks []template.Task) error

	// ListTemplateTasks returns the tasks under the given template stages
	// ordered by sortOrder.
	ListTemplateTasks(ctx context.Context, templateStageIDs []string) ([]template.Task, error)
}

// ChangeFeed delivers row-level changes pushed by the store.
type ChangeFeed interface {
	// Subscribe returns a channel of changes for one owner and entity kind.
	// The channel is closed when ctx is done or the feed shuts down.
	Subscribe(ctx context.Context, ownerID string, entity workflow.EntityKind) (<-chan workflow.ChangeEvent, error)
}

// Store bundles every storage port a backend provides.
type Store interface {
	StageRepository
	TaskRepository
	TemplateRepository
	ChangeFeed
}

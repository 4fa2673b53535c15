package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

const (
	msgRequired     = domain.MsgRequired
	msgMustNotEmpty = "must not be empty"
)

// CreateStageRequest represents the JSON body for adding a stage.
type CreateStageRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Validate checks that required fields are present.
// Returns a *domain.ValidationError if any checks fail.
func (r *CreateStageRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domain.NewValidationError("name", msgRequired)
	}
	return nil
}

// UpdateStageRequest represents the JSON body for renaming a stage.
// A nil Icon leaves the icon unchanged.
type UpdateStageRequest struct {
	Name string  `json:"name"`
	Icon *string `json:"icon,omitempty"`
}

// Validate checks that required fields are present.
func (r *UpdateStageRequest) Validate() error {
	fields := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		fields["name"] = msgRequired
	}
	if r.Icon != nil && strings.TrimSpace(*r.Icon) == "" {
		fields["icon"] = msgMustNotEmpty
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// StageKeysRequest carries an ordered list of stage keys, used by reorder
// and bulk delete.
type StageKeysRequest struct {
	StageKeys []string `json:"stage_keys"`
}

// Validate rejects an empty list.
func (r *StageKeysRequest) Validate() error {
	if len(r.StageKeys) == 0 {
		return domain.NewValidationError("stage_keys", msgMustNotEmpty)
	}
	return nil
}

// TaskIDsRequest carries an ordered list of task ids.
type TaskIDsRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// Validate rejects an empty list.
func (r *TaskIDsRequest) Validate() error {
	if len(r.TaskIDs) == 0 {
		return domain.NewValidationError("task_ids", msgMustNotEmpty)
	}
	return nil
}

// FolderRequest assigns a stage to a folder; a null folder_id clears it.
type FolderRequest struct {
	FolderID *string `json:"folder_id"`
}

// Validate rejects a blank folder id.
func (r *FolderRequest) Validate() error {
	if r.FolderID != nil && strings.TrimSpace(*r.FolderID) == "" {
		return domain.NewValidationError("folder_id", msgMustNotEmpty)
	}
	return nil
}

// SnapshotTaskPayload is one task of a pasted stage.
type SnapshotTaskPayload struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// StageSnapshotPayload is the identifier-free form of a stage, returned by
// copy and accepted by paste.
type StageSnapshotPayload struct {
	Name  string                `json:"name"`
	Icon  string                `json:"icon"`
	Tasks []SnapshotTaskPayload `json:"tasks"`
}

// Validate delegates to the snapshot's own rules.
func (r *StageSnapshotPayload) Validate() error {
	snap := r.ToDomain()
	return snap.Validate()
}

// ToDomain converts the payload to a workflow.StageSnapshot.
func (r *StageSnapshotPayload) ToDomain() workflow.StageSnapshot {
	tasks := make([]workflow.SnapshotTask, len(r.Tasks))
	for i, t := range r.Tasks {
		tasks[i] = workflow.SnapshotTask{Title: t.Title, Completed: t.Completed}
	}
	return workflow.StageSnapshot{Name: r.Name, Icon: r.Icon, Tasks: tasks}
}

// CopyFromOwnerRequest copies stages from another owner. An empty
// StageKeys copies every stage.
type CopyFromOwnerRequest struct {
	SourceOwnerID string   `json:"source_owner_id"`
	StageKeys     []string `json:"stage_keys,omitempty"`
	FolderID      *string  `json:"folder_id,omitempty"`
}

// Validate checks that required fields are present.
func (r *CopyFromOwnerRequest) Validate() error {
	if strings.TrimSpace(r.SourceOwnerID) == "" {
		return domain.NewValidationError("source_owner_id", msgRequired)
	}
	return nil
}

// CreateTasksRequest adds one task by Title or several by Titles.
type CreateTasksRequest struct {
	Title  string   `json:"title,omitempty"`
	Titles []string `json:"titles,omitempty"`
}

// Validate requires exactly one of title or titles.
func (r *CreateTasksRequest) Validate() error {
	hasTitle := strings.TrimSpace(r.Title) != ""
	switch {
	case hasTitle && len(r.Titles) > 0:
		return domain.NewValidationError("title", "cannot be combined with titles")
	case !hasTitle && len(r.Titles) == 0:
		return domain.NewValidationError("title", msgRequired)
	}
	return nil
}

// IsBulk reports whether the request adds several tasks.
func (r *CreateTasksRequest) IsBulk() bool {
	return len(r.Titles) > 0
}

// UpdateTaskRequest renames a task.
type UpdateTaskRequest struct {
	Title string `json:"title"`
}

// Validate checks that required fields are present.
func (r *UpdateTaskRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return domain.NewValidationError("title", msgRequired)
	}
	return nil
}

// CompletedAtRequest sets or clears a task's completion date.
type CompletedAtRequest struct {
	CompletedAt *time.Time `json:"completed_at"`
}

// Validate accepts any value; a null date marks the task not completed.
func (r *CompletedAtRequest) Validate() error {
	return nil
}

// TaskStyleRequest replaces a task's presentation fields.
type TaskStyleRequest struct {
	BackgroundColor *string `json:"background_color"`
	TextColor       *string `json:"text_color"`
	IsBold          *bool   `json:"is_bold"`
}

// Validate accepts any value; nulls clear the field.
func (r *TaskStyleRequest) Validate() error {
	return nil
}

// ToDomain converts the request to a workflow.Style.
func (r *TaskStyleRequest) ToDomain() workflow.Style {
	return workflow.Style{BackgroundColor: r.BackgroundColor, TextColor: r.TextColor, IsBold: r.IsBold}
}

// TimerTargetRequest starts a timer or changes its target.
type TimerTargetRequest struct {
	TargetWorkingDays int `json:"target_working_days"`
}

// Validate requires a positive target.
func (r *TimerTargetRequest) Validate() error {
	if r.TargetWorkingDays <= 0 {
		return domain.NewValidationError("target_working_days",
			fmt.Sprintf("%s, got %d", domain.MsgPositive, r.TargetWorkingDays))
	}
	return nil
}

// SaveTemplateRequest snapshots an owner, or one stage, into a template.
type SaveTemplateRequest struct {
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	IncludeContent bool    `json:"include_content,omitempty"`
}

// Validate checks that required fields are present.
func (r *SaveTemplateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domain.NewValidationError("name", msgRequired)
	}
	return nil
}

// ApplyTemplateRequest tunes a template application.
type ApplyTemplateRequest struct {
	IncludeContent bool    `json:"include_content,omitempty"`
	FolderID       *string `json:"folder_id,omitempty"`
}

// Validate rejects a blank folder id.
func (r *ApplyTemplateRequest) Validate() error {
	if r.FolderID != nil && strings.TrimSpace(*r.FolderID) == "" {
		return domain.NewValidationError("folder_id", msgMustNotEmpty)
	}
	return nil
}

// ToDomain converts the request to template.ApplyOptions.
func (r *ApplyTemplateRequest) ToDomain() template.ApplyOptions {
	return template.ApplyOptions{IncludeContent: r.IncludeContent, FolderID: r.FolderID}
}

// UpdateTemplateRequest represents the JSON body for updating a template.
// All fields are optional; a nil field is left unchanged.
type UpdateTemplateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// Validate checks that any provided fields have valid values.
func (r *UpdateTemplateRequest) Validate() error {
	fields := make(map[string]string)

	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		fields["name"] = msgMustNotEmpty
	}
	if r.Icon != nil && strings.TrimSpace(*r.Icon) == "" {
		fields["icon"] = msgMustNotEmpty
	}
	if r.Name == nil && r.Description == nil && r.Icon == nil && r.Color == nil {
		fields["body"] = "must change at least one field"
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// ToDomain converts the request to a template.Update.
func (r *UpdateTemplateRequest) ToDomain() template.Update {
	return template.Update{Name: r.Name, Description: r.Description, Icon: r.Icon, Color: r.Color}
}

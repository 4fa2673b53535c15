package workflow

import (
	"strings"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
)

// Task is a checklist item belonging to the stage named by StageKey.
type Task struct {
	ID          string
	OwnerID     string
	StageKey    string
	Title       string
	Completed   bool
	CompletedAt *time.Time
	SortOrder   int
	Style
	Timer
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Style holds the optional presentation fields of a task.
type Style struct {
	BackgroundColor *string
	TextColor       *string
	IsBold          *bool
}

// Validate checks business rules for the Task entity.
// Returns a *domain.ValidationError (wrapping domain.ErrValidation) with per-field details,
// or nil if all rules pass.
func (t *Task) Validate() error {
	fields := make(map[string]string)

	if strings.TrimSpace(t.OwnerID) == "" {
		fields["owner_id"] = domain.MsgRequired
	}
	if strings.TrimSpace(t.StageKey) == "" {
		fields["stage_key"] = domain.MsgRequired
	}
	if strings.TrimSpace(t.Title) == "" {
		fields["title"] = domain.MsgRequired
	}
	if t.SortOrder < 0 {
		fields["sort_order"] = "must not be negative"
	}
	if t.TargetWorkingDays != nil && *t.TargetWorkingDays <= 0 {
		fields["target_working_days"] = domain.MsgPositive
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// TaskField flags the task fields carried by a patch or update event.
type TaskField uint16

const (
	TaskFieldTitle TaskField = 1 << iota
	TaskFieldCompleted
	TaskFieldCompletedAt
	TaskFieldSortOrder
	TaskFieldBackgroundColor
	TaskFieldTextColor
	TaskFieldIsBold
	TaskFieldStartedAt
	TaskFieldTarget
	TaskFieldDisplayStyle
	TaskFieldUpdatedAt

	TaskFieldsStyle = TaskFieldBackgroundColor | TaskFieldTextColor | TaskFieldIsBold
	TaskFieldsAll   = TaskFieldTitle | TaskFieldCompleted | TaskFieldCompletedAt | TaskFieldSortOrder |
		TaskFieldsStyle | TaskFieldStartedAt | TaskFieldTarget | TaskFieldDisplayStyle | TaskFieldUpdatedAt
)

// Has reports whether every flag in f is set.
func (t TaskField) Has(f TaskField) bool {
	return t&f == f
}

// TaskPatch is a partial task update: only fields flagged in Fields are read
// from Values.
type TaskPatch struct {
	Values Task
	Fields TaskField
}

// Merge shallow-copies the flagged fields of src into t. Identity fields
// (id, owner, stage key, createdAt) are never touched.
func (t *Task) Merge(src Task, fields TaskField) {
	if fields.Has(TaskFieldTitle) {
		t.Title = src.Title
	}
	if fields.Has(TaskFieldCompleted) {
		t.Completed = src.Completed
	}
	if fields.Has(TaskFieldCompletedAt) {
		t.CompletedAt = src.CompletedAt
	}
	if fields.Has(TaskFieldSortOrder) {
		t.SortOrder = src.SortOrder
	}
	if fields.Has(TaskFieldBackgroundColor) {
		t.BackgroundColor = src.BackgroundColor
	}
	if fields.Has(TaskFieldTextColor) {
		t.TextColor = src.TextColor
	}
	if fields.Has(TaskFieldIsBold) {
		t.IsBold = src.IsBold
	}
	if fields.Has(TaskFieldStartedAt) {
		t.StartedAt = src.StartedAt
	}
	if fields.Has(TaskFieldTarget) {
		t.TargetWorkingDays = src.TargetWorkingDays
	}
	if fields.Has(TaskFieldDisplayStyle) {
		t.DisplayStyle = src.DisplayStyle
	}
	if fields.Has(TaskFieldUpdatedAt) {
		t.UpdatedAt = src.UpdatedAt
	}
}

// StylePatch builds a patch from the non-nil fields of s.
func StylePatch(s Style) TaskPatch {
	p := TaskPatch{Values: Task{Style: s}}
	if s.BackgroundColor != nil {
		p.Fields |= TaskFieldBackgroundColor
	}
	if s.TextColor != nil {
		p.Fields |= TaskFieldTextColor
	}
	if s.IsBold != nil {
		p.Fields |= TaskFieldIsBold
	}
	return p
}

// CompletionPatch marks a task completed at the given time, or not
// completed when at is nil.
func CompletionPatch(at *time.Time) TaskPatch {
	var when *time.Time
	if at != nil {
		utc := at.UTC()
		when = &utc
	}
	return TaskPatch{
		Values: Task{Completed: when != nil, CompletedAt: when},
		Fields: TaskFieldCompleted | TaskFieldCompletedAt,
	}
}

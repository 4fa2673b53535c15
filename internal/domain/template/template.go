package template

import (
	"strings"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

// Template is an owner-independent, reusable snapshot of stages and tasks.
type Template struct {
	ID          string
	Name        string
	Description *string
	Icon        string
	Color       *string
	MultiStage  bool
	CreatedAt   time.Time
	// Stages is filled by listings; TaskCount counts tasks across them.
	Stages    []Stage
	TaskCount int
}

// Validate checks business rules for the Template header.
// Returns a *domain.ValidationError (wrapping domain.ErrValidation) with per-field details,
// or nil if all rules pass.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return domain.NewValidationError("name", domain.MsgRequired)
	}
	return nil
}

// Stage is one stage inside a template.
type Stage struct {
	ID                string
	TemplateID        string
	Name              string
	Icon              string
	SortOrder         int
	TargetWorkingDays *int
}

// Task is one task inside a template. Style and Metadata are set only for
// templates saved with content.
type Task struct {
	ID              string
	TemplateID      string
	TemplateStageID string
	Title           string
	SortOrder       int
	Style           *Style
	Metadata        *Metadata
}

// Style is the styling and timer snapshot of a task saved with content.
type Style struct {
	BackgroundColor   *string
	TextColor         *string
	IsBold            *bool
	TargetWorkingDays *int
	DisplayStyle      workflow.DisplayStyle
}

// Metadata is the progress bag of a task saved with content.
type Metadata struct {
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

// Update is a partial change to a template header. Nil fields are left
// unchanged.
type Update struct {
	Name        *string
	Description *string
	Icon        *string
	Color       *string
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Icon == nil && u.Color == nil
}

// Validate rejects an update that blanks the name.
func (u Update) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return domain.NewValidationError("name", domain.MsgRequired)
	}
	return nil
}

// Bundle is a template with all of its content, used for export and import.
type Bundle struct {
	Template Template
	Stages   []Stage
	Tasks    []Task
}

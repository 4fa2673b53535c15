package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
)

// DefaultStageIcon is used when a stage is created without an icon.
const DefaultStageIcon = "Phone"

// Stage is one ordered step of an owner's pipeline. StageKey is the stable
// logical key tasks point at; ID is the storage row id.
type Stage struct {
	ID        string
	OwnerID   string
	StageKey  string
	Name      string
	Icon      string
	SortOrder int
	Timer
	FolderID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks business rules for the Stage entity.
// Returns a *domain.ValidationError (wrapping domain.ErrValidation) with per-field details,
// or nil if all rules pass.
func (s *Stage) Validate() error {
	fields := make(map[string]string)

	if strings.TrimSpace(s.OwnerID) == "" {
		fields["owner_id"] = domain.MsgRequired
	}
	if strings.TrimSpace(s.StageKey) == "" {
		fields["stage_key"] = domain.MsgRequired
	}
	if strings.TrimSpace(s.Name) == "" {
		fields["name"] = domain.MsgRequired
	}
	if s.SortOrder < 0 {
		fields["sort_order"] = "must not be negative"
	}
	if s.TargetWorkingDays != nil && *s.TargetWorkingDays <= 0 {
		fields["target_working_days"] = domain.MsgPositive
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// StageField flags the stage fields carried by a patch or update event.
type StageField uint16

const (
	StageFieldName StageField = 1 << iota
	StageFieldIcon
	StageFieldSortOrder
	StageFieldStartedAt
	StageFieldTarget
	StageFieldDisplayStyle
	StageFieldFolder
	StageFieldUpdatedAt

	StageFieldsAll = StageFieldName | StageFieldIcon | StageFieldSortOrder | StageFieldStartedAt |
		StageFieldTarget | StageFieldDisplayStyle | StageFieldFolder | StageFieldUpdatedAt
)

// Has reports whether every flag in f is set.
func (s StageField) Has(f StageField) bool {
	return s&f == f
}

// StagePatch is a partial stage update: only fields flagged in Fields are
// read from Values.
type StagePatch struct {
	Values Stage
	Fields StageField
}

// Merge shallow-copies the flagged fields of src into s. Identity fields
// (id, owner, stage key, createdAt) are never touched.
func (s *Stage) Merge(src Stage, fields StageField) {
	if fields.Has(StageFieldName) {
		s.Name = src.Name
	}
	if fields.Has(StageFieldIcon) {
		s.Icon = src.Icon
	}
	if fields.Has(StageFieldSortOrder) {
		s.SortOrder = src.SortOrder
	}
	if fields.Has(StageFieldStartedAt) {
		s.StartedAt = src.StartedAt
	}
	if fields.Has(StageFieldTarget) {
		s.TargetWorkingDays = src.TargetWorkingDays
	}
	if fields.Has(StageFieldDisplayStyle) {
		s.DisplayStyle = src.DisplayStyle
	}
	if fields.Has(StageFieldFolder) {
		s.FolderID = src.FolderID
	}
	if fields.Has(StageFieldUpdatedAt) {
		s.UpdatedAt = src.UpdatedAt
	}
}

// NewID returns a fresh row id.
func NewID() string {
	return uuid.NewString()
}

// NewStageKey returns a fresh stage key, unique per owner in practice.
func NewStageKey() string {
	return "stage_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

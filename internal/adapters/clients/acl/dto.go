package acl

import (
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
)

// stageRow is a row of the stages table as the row store encodes it.
type stageRow struct {
	ID                string     `json:"id"`
	OwnerID           string     `json:"owner_id"`
	StageKey          string     `json:"stage_key"`
	Name              string     `json:"name"`
	Icon              string     `json:"icon"`
	SortOrder         int        `json:"sort_order"`
	StartedAt         *time.Time `json:"started_at"`
	TargetWorkingDays *int       `json:"target_working_days"`
	DisplayStyle      int        `json:"display_style"`
	FolderID          *string    `json:"folder_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// taskRow is a row of the tasks table.
type taskRow struct {
	ID                string     `json:"id"`
	OwnerID           string     `json:"owner_id"`
	StageKey          string     `json:"stage_key"`
	Title             string     `json:"title"`
	Completed         bool       `json:"completed"`
	CompletedAt       *time.Time `json:"completed_at"`
	SortOrder         int        `json:"sort_order"`
	BackgroundColor   *string    `json:"background_color"`
	TextColor         *string    `json:"text_color"`
	IsBold            *bool      `json:"is_bold"`
	StartedAt         *time.Time `json:"started_at"`
	TargetWorkingDays *int       `json:"target_working_days"`
	DisplayStyle      int        `json:"display_style"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// templateRow is a row of the templates table. Listings embed the
// template's stages and a task count.
type templateRow struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description *string            `json:"description"`
	Icon        string             `json:"icon"`
	Color       *string            `json:"color"`
	MultiStage  bool               `json:"multi_stage"`
	CreatedAt   time.Time          `json:"created_at"`
	Stages      []templateStageRow `json:"template_stages,omitempty"`
	TaskCounts  []countRow         `json:"template_tasks,omitempty"`
}

type countRow struct {
	Count int `json:"count"`
}

type templateStageRow struct {
	ID                string `json:"id"`
	TemplateID        string `json:"template_id"`
	Name              string `json:"name"`
	Icon              string `json:"icon"`
	SortOrder         int    `json:"sort_order"`
	TargetWorkingDays *int   `json:"target_working_days"`
}

type templateTaskRow struct {
	ID              string             `json:"id"`
	TemplateID      string             `json:"template_id"`
	TemplateStageID string             `json:"template_stage_id"`
	Title           string             `json:"title"`
	SortOrder       int                `json:"sort_order"`
	Style           *styleDoc          `json:"style"`
	Metadata        *template.Metadata `json:"metadata"`
}

// styleDoc is the jsonb form of a template task's style.
type styleDoc struct {
	BackgroundColor   *string `json:"background_color,omitempty"`
	TextColor         *string `json:"text_color,omitempty"`
	IsBold            *bool   `json:"is_bold,omitempty"`
	TargetWorkingDays *int    `json:"target_working_days,omitempty"`
	DisplayStyle      int     `json:"display_style"`
}

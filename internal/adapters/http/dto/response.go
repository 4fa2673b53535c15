// Package dto provides HTTP request/response data transfer objects and
// RFC 9457 Problem Details error responses for the inbound HTTP adapter layer.
package dto

import (
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

// TimerResponse is the progress timer of a stage or task.
type TimerResponse struct {
	Running           bool       `json:"running"`
	StartedAt         *time.Time `json:"started_at"`
	TargetWorkingDays *int       `json:"target_working_days"`
	DisplayStyle      int        `json:"display_style"`
}

// StageResponse represents a single stage in HTTP responses.
type StageResponse struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"owner_id"`
	StageKey  string        `json:"stage_key"`
	Name      string        `json:"name"`
	Icon      string        `json:"icon"`
	SortOrder int           `json:"sort_order"`
	Timer     TimerResponse `json:"timer"`
	FolderID  *string       `json:"folder_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TaskResponse represents a single task in HTTP responses.
type TaskResponse struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"owner_id"`
	StageKey        string        `json:"stage_key"`
	Title           string        `json:"title"`
	Completed       bool          `json:"completed"`
	CompletedAt     *time.Time    `json:"completed_at"`
	SortOrder       int           `json:"sort_order"`
	BackgroundColor *string       `json:"background_color"`
	TextColor       *string       `json:"text_color"`
	IsBold          *bool         `json:"is_bold"`
	Timer           TimerResponse `json:"timer"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// StageViewResponse is a stage with its ordered tasks.
type StageViewResponse struct {
	StageResponse
	Tasks []TaskResponse `json:"tasks"`
}

// PipelineResponse is an owner's full ordered view.
type PipelineResponse struct {
	OwnerID string              `json:"owner_id"`
	Stages  []StageViewResponse `json:"stages"`
}

// TaskListResponse wraps tasks created in bulk.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Count int            `json:"count"`
}

// SummaryResponse is an owner's progress digest.
type SummaryResponse struct {
	TotalStages     int            `json:"total_stages"`
	CompletedStages int            `json:"completed_stages"`
	TotalTasks      int            `json:"total_tasks"`
	CompletedTasks  int            `json:"completed_tasks"`
	AllComplete     bool           `json:"all_complete"`
	CurrentStage    *StageResponse `json:"current_stage"`
}

// StageKeysResponse lists stage keys created by a copy.
type StageKeysResponse struct {
	StageKeys []string `json:"stage_keys"`
}

// TemplateStageResponse is one stage inside a template.
type TemplateStageResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Icon              string `json:"icon"`
	SortOrder         int    `json:"sort_order"`
	TargetWorkingDays *int   `json:"target_working_days"`
}

// TemplateResponse represents a template header in HTTP responses.
type TemplateResponse struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description *string                 `json:"description"`
	Icon        string                  `json:"icon"`
	Color       *string                 `json:"color"`
	MultiStage  bool                    `json:"multi_stage"`
	CreatedAt   time.Time               `json:"created_at"`
	Stages      []TemplateStageResponse `json:"stages"`
	TaskCount   int                     `json:"task_count"`
}

// TemplateListResponse wraps a list of templates with a count.
type TemplateListResponse struct {
	Templates []TemplateResponse `json:"templates"`
	Count     int                `json:"count"`
}

// ApplyReportResponse describes a template application.
type ApplyReportResponse struct {
	TemplateID   string   `json:"template_id"`
	State        string   `json:"state"`
	Transitions  []string `json:"transitions"`
	StageKeys    []string `json:"stage_keys"`
	TasksCreated int      `json:"tasks_created"`
}

// ChangeEventResponse is one change pushed over the owner feed. Exactly
// one of Stage or Task is set.
type ChangeEventResponse struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	ID     string         `json:"id"`
	Stage  *StageResponse `json:"stage,omitempty"`
	Task   *TaskResponse  `json:"task,omitempty"`
}

func toTimerResponse(t workflow.Timer) TimerResponse {
	return TimerResponse{
		Running:           t.Running(),
		StartedAt:         t.StartedAt,
		TargetWorkingDays: t.TargetWorkingDays,
		DisplayStyle:      int(t.DisplayStyle),
	}
}

// ToStageResponse converts a workflow.Stage to a StageResponse.
func ToStageResponse(s workflow.Stage) StageResponse {
	return StageResponse{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		StageKey:  s.StageKey,
		Name:      s.Name,
		Icon:      s.Icon,
		SortOrder: s.SortOrder,
		Timer:     toTimerResponse(s.Timer),
		FolderID:  s.FolderID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// ToTaskResponse converts a workflow.Task to a TaskResponse.
func ToTaskResponse(t workflow.Task) TaskResponse {
	return TaskResponse{
		ID:              t.ID,
		OwnerID:         t.OwnerID,
		StageKey:        t.StageKey,
		Title:           t.Title,
		Completed:       t.Completed,
		CompletedAt:     t.CompletedAt,
		SortOrder:       t.SortOrder,
		BackgroundColor: t.BackgroundColor,
		TextColor:       t.TextColor,
		IsBold:          t.IsBold,
		Timer:           toTimerResponse(t.Timer),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// ToTaskListResponse converts a slice of tasks to a TaskListResponse.
func ToTaskListResponse(tasks []workflow.Task) TaskListResponse {
	items := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		items[i] = ToTaskResponse(t)
	}
	return TaskListResponse{Tasks: items, Count: len(items)}
}

// ToPipelineResponse converts an owner's ordered view.
func ToPipelineResponse(ownerID string, views []workflow.StageView) PipelineResponse {
	stages := make([]StageViewResponse, len(views))
	for i, v := range views {
		tasks := make([]TaskResponse, len(v.Tasks))
		for j, t := range v.Tasks {
			tasks[j] = ToTaskResponse(t)
		}
		stages[i] = StageViewResponse{StageResponse: ToStageResponse(v.Stage), Tasks: tasks}
	}
	return PipelineResponse{OwnerID: ownerID, Stages: stages}
}

// ToSummaryResponse converts a workflow.Summary.
func ToSummaryResponse(s workflow.Summary) SummaryResponse {
	resp := SummaryResponse{
		TotalStages:     s.TotalStages,
		CompletedStages: s.CompletedStages,
		TotalTasks:      s.TotalTasks,
		CompletedTasks:  s.CompletedTasks,
		AllComplete:     s.AllComplete(),
	}
	if s.CurrentStage != nil {
		st := ToStageResponse(*s.CurrentStage)
		resp.CurrentStage = &st
	}
	return resp
}

// ToSnapshotPayload converts a workflow.StageSnapshot.
func ToSnapshotPayload(s workflow.StageSnapshot) StageSnapshotPayload {
	tasks := make([]SnapshotTaskPayload, len(s.Tasks))
	for i, t := range s.Tasks {
		tasks[i] = SnapshotTaskPayload{Title: t.Title, Completed: t.Completed}
	}
	return StageSnapshotPayload{Name: s.Name, Icon: s.Icon, Tasks: tasks}
}

// ToTemplateResponse converts a template.Template to a TemplateResponse.
func ToTemplateResponse(t template.Template) TemplateResponse {
	stages := make([]TemplateStageResponse, len(t.Stages))
	for i, s := range t.Stages {
		stages[i] = TemplateStageResponse{
			ID:                s.ID,
			Name:              s.Name,
			Icon:              s.Icon,
			SortOrder:         s.SortOrder,
			TargetWorkingDays: s.TargetWorkingDays,
		}
	}
	return TemplateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Icon:        t.Icon,
		Color:       t.Color,
		MultiStage:  t.MultiStage,
		CreatedAt:   t.CreatedAt,
		Stages:      stages,
		TaskCount:   t.TaskCount,
	}
}

// ToTemplateListResponse converts a slice of templates.
func ToTemplateListResponse(templates []template.Template) TemplateListResponse {
	items := make([]TemplateResponse, len(templates))
	for i, t := range templates {
		items[i] = ToTemplateResponse(t)
	}
	return TemplateListResponse{Templates: items, Count: len(items)}
}

// ToApplyReportResponse converts a template.ApplyReport.
func ToApplyReportResponse(r template.ApplyReport) ApplyReportResponse {
	transitions := make([]string, len(r.Transitions))
	for i, s := range r.Transitions {
		transitions[i] = s.String()
	}
	keys := r.StageKeys
	if keys == nil {
		keys = []string{}
	}
	return ApplyReportResponse{
		TemplateID:   r.TemplateID,
		State:        r.State.String(),
		Transitions:  transitions,
		StageKeys:    keys,
		TasksCreated: r.TasksCreated,
	}
}

// ToChangeEventResponse converts a workflow.ChangeEvent.
func ToChangeEventResponse(e workflow.ChangeEvent) ChangeEventResponse {
	resp := ChangeEventResponse{Type: e.Type.String(), Entity: e.Entity.String(), ID: e.ID()}
	switch e.Entity {
	case workflow.EntityStage:
		st := ToStageResponse(e.Stage)
		resp.Stage = &st
	case workflow.EntityTask:
		t := ToTaskResponse(e.Task)
		resp.Task = &t
	}
	return resp
}

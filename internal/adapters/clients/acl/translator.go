package acl

import (
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

func toStageRow(s workflow.Stage) stageRow {
	return stageRow{
		ID:                s.ID,
		OwnerID:           s.OwnerID,
		StageKey:          s.StageKey,
		Name:              s.Name,
		Icon:              s.Icon,
		SortOrder:         s.SortOrder,
		StartedAt:         s.StartedAt,
		TargetWorkingDays: s.TargetWorkingDays,
		DisplayStyle:      int(s.DisplayStyle),
		FolderID:          s.FolderID,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func toDomainStage(r stageRow) workflow.Stage {
	return workflow.Stage{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		StageKey:  r.StageKey,
		Name:      r.Name,
		Icon:      r.Icon,
		SortOrder: r.SortOrder,
		Timer: workflow.Timer{
			StartedAt:         utcPtr(r.StartedAt),
			TargetWorkingDays: r.TargetWorkingDays,
			DisplayStyle:      workflow.DisplayStyle(r.DisplayStyle).OrDefault(),
		},
		FolderID:  r.FolderID,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toTaskRow(t workflow.Task) taskRow {
	return taskRow{
		ID:                t.ID,
		OwnerID:           t.OwnerID,
		StageKey:          t.StageKey,
		Title:             t.Title,
		Completed:         t.Completed,
		CompletedAt:       t.CompletedAt,
		SortOrder:         t.SortOrder,
		BackgroundColor:   t.BackgroundColor,
		TextColor:         t.TextColor,
		IsBold:            t.IsBold,
		StartedAt:         t.StartedAt,
		TargetWorkingDays: t.TargetWorkingDays,
		DisplayStyle:      int(t.DisplayStyle),
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func toDomainTask(r taskRow) workflow.Task {
	return workflow.Task{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		StageKey:    r.StageKey,
		Title:       r.Title,
		Completed:   r.Completed,
		CompletedAt: utcPtr(r.CompletedAt),
		SortOrder:   r.SortOrder,
		Style: workflow.Style{
			BackgroundColor: r.BackgroundColor,
			TextColor:       r.TextColor,
			IsBold:          r.IsBold,
		},
		Timer: workflow.Timer{
			StartedAt:         utcPtr(r.StartedAt),
			TargetWorkingDays: r.TargetWorkingDays,
			DisplayStyle:      workflow.DisplayStyle(r.DisplayStyle).OrDefault(),
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// stagePatchBody holds only the columns flagged in p.
func stagePatchBody(p workflow.StagePatch) map[string]any {
	v, body := p.Values, make(map[string]any)
	if p.Fields.Has(workflow.StageFieldName) {
		body["name"] = v.Name
	}
	if p.Fields.Has(workflow.StageFieldIcon) {
		body["icon"] = v.Icon
	}
	if p.Fields.Has(workflow.StageFieldSortOrder) {
		body["sort_order"] = v.SortOrder
	}
	if p.Fields.Has(workflow.StageFieldStartedAt) {
		body["started_at"] = v.StartedAt
	}
	if p.Fields.Has(workflow.StageFieldTarget) {
		body["target_working_days"] = v.TargetWorkingDays
	}
	if p.Fields.Has(workflow.StageFieldDisplayStyle) {
		body["display_style"] = int(v.DisplayStyle)
	}
	if p.Fields.Has(workflow.StageFieldFolder) {
		body["folder_id"] = v.FolderID
	}
	if p.Fields.Has(workflow.StageFieldUpdatedAt) {
		body["updated_at"] = v.UpdatedAt
	}
	return body
}

func taskPatchBody(p workflow.TaskPatch) map[string]any {
	v, body := p.Values, make(map[string]any)
	if p.Fields.Has(workflow.TaskFieldTitle) {
		body["title"] = v.Title
	}
	if p.Fields.Has(workflow.TaskFieldCompleted) {
		body["completed"] = v.Completed
	}
	if p.Fields.Has(workflow.TaskFieldCompletedAt) {
		body["completed_at"] = v.CompletedAt
	}
	if p.Fields.Has(workflow.TaskFieldSortOrder) {
		body["sort_order"] = v.SortOrder
	}
	if p.Fields.Has(workflow.TaskFieldBackgroundColor) {
		body["background_color"] = v.BackgroundColor
	}
	if p.Fields.Has(workflow.TaskFieldTextColor) {
		body["text_color"] = v.TextColor
	}
	if p.Fields.Has(workflow.TaskFieldIsBold) {
		body["is_bold"] = v.IsBold
	}
	if p.Fields.Has(workflow.TaskFieldStartedAt) {
		body["started_at"] = v.StartedAt
	}
	if p.Fields.Has(workflow.TaskFieldTarget) {
		body["target_working_days"] = v.TargetWorkingDays
	}
	if p.Fields.Has(workflow.TaskFieldDisplayStyle) {
		body["display_style"] = int(v.DisplayStyle)
	}
	if p.Fields.Has(workflow.TaskFieldUpdatedAt) {
		body["updated_at"] = v.UpdatedAt
	}
	return body
}

func toTemplateRow(t template.Template) templateRow {
	return templateRow{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Icon:        t.Icon,
		Color:       t.Color,
		MultiStage:  t.MultiStage,
		CreatedAt:   t.CreatedAt,
	}
}

func toDomainTemplate(r templateRow) template.Template {
	t := template.Template{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Icon:        r.Icon,
		Color:       r.Color,
		MultiStage:  r.MultiStage,
		CreatedAt:   r.CreatedAt.UTC(),
		Stages:      toDomainTemplateStages(r.Stages),
	}
	for _, c := range r.TaskCounts {
		t.TaskCount += c.Count
	}
	return t
}

func toTemplateStageRow(s template.Stage) templateStageRow {
	return templateStageRow{
		ID:                s.ID,
		TemplateID:        s.TemplateID,
		Name:              s.Name,
		Icon:              s.Icon,
		SortOrder:         s.SortOrder,
		TargetWorkingDays: s.TargetWorkingDays,
	}
}

// toDomainTemplateStages converts and orders embedded stage rows; the row
// store does not order embedded resources.
func toDomainTemplateStages(rows []templateStageRow) []template.Stage {
	out := make([]template.Stage, len(rows))
	for i, r := range rows {
		out[i] = template.Stage{
			ID:                r.ID,
			TemplateID:        r.TemplateID,
			Name:              r.Name,
			Icon:              r.Icon,
			SortOrder:         r.SortOrder,
			TargetWorkingDays: r.TargetWorkingDays,
		}
	}
	sortTemplateStages(out)
	return out
}

func toTemplateTaskRow(t template.Task) templateTaskRow {
	row := templateTaskRow{
		ID:              t.ID,
		TemplateID:      t.TemplateID,
		TemplateStageID: t.TemplateStageID,
		Title:           t.Title,
		SortOrder:       t.SortOrder,
		Metadata:        t.Metadata,
	}
	if t.Style != nil {
		row.Style = &styleDoc{
			BackgroundColor:   t.Style.BackgroundColor,
			TextColor:         t.Style.TextColor,
			IsBold:            t.Style.IsBold,
			TargetWorkingDays: t.Style.TargetWorkingDays,
			DisplayStyle:      int(t.Style.DisplayStyle),
		}
	}
	return row
}

func toDomainTemplateTask(r templateTaskRow) template.Task {
	t := template.Task{
		ID:              r.ID,
		TemplateID:      r.TemplateID,
		TemplateStageID: r.TemplateStageID,
		Title:           r.Title,
		SortOrder:       r.SortOrder,
		Metadata:        r.Metadata,
	}
	if r.Style != nil {
		t.Style = &template.Style{
			BackgroundColor:   r.Style.BackgroundColor,
			TextColor:         r.Style.TextColor,
			IsBold:            r.Style.IsBold,
			TargetWorkingDays: r.Style.TargetWorkingDays,
			DisplayStyle:      workflow.DisplayStyle(r.Style.DisplayStyle),
		}
	}
	return t
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

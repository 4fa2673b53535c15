package template

import "github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"

// StageFrom captures the template-level fields of a live stage.
func StageFrom(s workflow.Stage, templateID string, sortOrder int) Stage {
	return Stage{
		ID:                workflow.NewID(),
		TemplateID:        templateID,
		Name:              s.Name,
		Icon:              s.Icon,
		SortOrder:         sortOrder,
		TargetWorkingDays: s.TargetWorkingDays,
	}
}

// TaskFrom captures a live task. With includeContent the styling, timer and
// progress fields are kept as well; otherwise only title and order.
func TaskFrom(t workflow.Task, templateID, templateStageID string, includeContent bool) Task {
	out := Task{
		ID:              workflow.NewID(),
		TemplateID:      templateID,
		TemplateStageID: templateStageID,
		Title:           t.Title,
		SortOrder:       t.SortOrder,
	}
	if !includeContent {
		return out
	}
	out.Style = &Style{
		BackgroundColor:   t.BackgroundColor,
		TextColor:         t.TextColor,
		IsBold:            t.IsBold,
		TargetWorkingDays: t.TargetWorkingDays,
		DisplayStyle:      t.DisplayStyle,
	}
	out.Metadata = &Metadata{
		Completed:   t.Completed,
		CompletedAt: t.CompletedAt,
		StartedAt:   t.StartedAt,
	}
	return out
}

// Materialize builds a live task for owner under stageKey. Content from
// the template is applied only when includeContent is set; otherwise the
// task starts not started and not completed.
func (t Task) Materialize(ownerID, stageKey string, includeContent bool) workflow.Task {
	out := workflow.Task{
		ID:        workflow.NewID(),
		OwnerID:   ownerID,
		StageKey:  stageKey,
		Title:     t.Title,
		SortOrder: t.SortOrder,
		Timer:     workflow.Timer{DisplayStyle: workflow.DisplayStyleFirst},
	}
	if !includeContent {
		return out
	}
	if t.Style != nil {
		out.BackgroundColor = t.Style.BackgroundColor
		out.TextColor = t.Style.TextColor
		out.IsBold = t.Style.IsBold
		out.TargetWorkingDays = t.Style.TargetWorkingDays
		out.DisplayStyle = t.Style.DisplayStyle.OrDefault()
	}
	if t.Metadata != nil {
		out.Completed = t.Metadata.Completed
		out.CompletedAt = t.Metadata.CompletedAt
		out.StartedAt = t.Metadata.StartedAt
	}
	return out
}

package main

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

// bundleVersion is the export format written by this build.
const bundleVersion = 1

// bundleDoc is the YAML export of a template. Tasks nest under their stage
// and order follows list position, so no ids are written.
type bundleDoc struct {
	Version     int        `yaml:"version"`
	Name        string     `yaml:"name"`
	Description *string    `yaml:"description,omitempty"`
	Icon        string     `yaml:"icon,omitempty"`
	Color       *string    `yaml:"color,omitempty"`
	MultiStage  bool       `yaml:"multi_stage"`
	Stages      []stageDoc `yaml:"stages"`
}

type stageDoc struct {
	Name              string    `yaml:"name"`
	Icon              string    `yaml:"icon,omitempty"`
	TargetWorkingDays *int      `yaml:"target_working_days,omitempty"`
	Tasks             []taskDoc `yaml:"tasks,omitempty"`
}

type taskDoc struct {
	Title    string       `yaml:"title"`
	Style    *styleDoc    `yaml:"style,omitempty"`
	Progress *progressDoc `yaml:"progress,omitempty"`
}

type styleDoc struct {
	BackgroundColor   *string `yaml:"background_color,omitempty"`
	TextColor         *string `yaml:"text_color,omitempty"`
	IsBold            *bool   `yaml:"is_bold,omitempty"`
	TargetWorkingDays *int    `yaml:"target_working_days,omitempty"`
	DisplayStyle      int     `yaml:"display_style,omitempty"`
}

type progressDoc struct {
	Completed   bool       `yaml:"completed"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
	StartedAt   *time.Time `yaml:"started_at,omitempty"`
}

func toBundleDoc(b template.Bundle) bundleDoc {
	doc := bundleDoc{
		Version:     bundleVersion,
		Name:        b.Template.Name,
		Description: b.Template.Description,
		Icon:        b.Template.Icon,
		Color:       b.Template.Color,
		MultiStage:  b.Template.MultiStage,
	}

	stages := slices.Clone(b.Stages)
	slices.SortStableFunc(stages, func(x, y template.Stage) int { return cmp.Compare(x.SortOrder, y.SortOrder) })
	tasks := slices.Clone(b.Tasks)
	slices.SortStableFunc(tasks, func(x, y template.Task) int { return cmp.Compare(x.SortOrder, y.SortOrder) })

	byStage := make(map[string][]taskDoc, len(stages))
	for _, t := range tasks {
		td := taskDoc{Title: t.Title}
		if t.Style != nil {
			td.Style = &styleDoc{
				BackgroundColor:   t.Style.BackgroundColor,
				TextColor:         t.Style.TextColor,
				IsBold:            t.Style.IsBold,
				TargetWorkingDays: t.Style.TargetWorkingDays,
				DisplayStyle:      int(t.Style.DisplayStyle),
			}
		}
		if t.Metadata != nil {
			td.Progress = &progressDoc{
				Completed:   t.Metadata.Completed,
				CompletedAt: t.Metadata.CompletedAt,
				StartedAt:   t.Metadata.StartedAt,
			}
		}
		byStage[t.TemplateStageID] = append(byStage[t.TemplateStageID], td)
	}

	doc.Stages = make([]stageDoc, 0, len(stages))
	for _, s := range stages {
		doc.Stages = append(doc.Stages, stageDoc{
			Name:              s.Name,
			Icon:              s.Icon,
			TargetWorkingDays: s.TargetWorkingDays,
			Tasks:             byStage[s.ID],
		})
	}
	return doc
}

// toBundle converts doc to a bundle with placeholder ids; the template
// service assigns real ids on import.
func (doc bundleDoc) toBundle() (template.Bundle, error) {
	if doc.Version != bundleVersion {
		return template.Bundle{}, fmt.Errorf("unsupported bundle version %d, want %d", doc.Version, bundleVersion)
	}
	if len(doc.Stages) == 0 {
		return template.Bundle{}, fmt.Errorf("bundle %q has no stages", doc.Name)
	}

	b := template.Bundle{
		Template: template.Template{
			Name:        doc.Name,
			Description: doc.Description,
			Icon:        doc.Icon,
			Color:       doc.Color,
			MultiStage:  doc.MultiStage,
		},
	}
	for i, s := range doc.Stages {
		stageID := fmt.Sprintf("stage-%d", i)
		b.Stages = append(b.Stages, template.Stage{
			ID:                stageID,
			Name:              s.Name,
			Icon:              s.Icon,
			SortOrder:         i,
			TargetWorkingDays: s.TargetWorkingDays,
		})
		for j, t := range s.Tasks {
			task := template.Task{
				TemplateStageID: stageID,
				Title:           t.Title,
				SortOrder:       j,
			}
			if t.Style != nil {
				task.Style = &template.Style{
					BackgroundColor:   t.Style.BackgroundColor,
					TextColor:         t.Style.TextColor,
					IsBold:            t.Style.IsBold,
					TargetWorkingDays: t.Style.TargetWorkingDays,
					DisplayStyle:      workflow.DisplayStyle(t.Style.DisplayStyle),
				}
			}
			if t.Progress != nil {
				task.Metadata = &template.Metadata{
					Completed:   t.Progress.Completed,
					CompletedAt: t.Progress.CompletedAt,
					StartedAt:   t.Progress.StartedAt,
				}
			}
			b.Tasks = append(b.Tasks, task)
		}
	}
	return b, nil
}

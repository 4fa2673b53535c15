package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

const (
	templateColumns      = "id, name, description, icon, color, multi_stage, created_at"
	templateStageColumns = "id, template_id, name, icon, sort_order, target_working_days"
	templateTaskColumns  = "id, template_id, template_stage_id, title, sort_order, style, metadata"
)

func scanTemplate(r rowScanner) (template.Template, error) {
	var (
		t           template.Template
		description sql.NullString
		color       sql.NullString
	)
	if err := r.Scan(&t.ID, &t.Name, &description, &t.Icon, &color, &t.MultiStage, instant{&t.CreatedAt}); err != nil {
		return template.Template{}, err
	}
	t.Description = optString(description)
	t.Color = optString(color)
	return t, nil
}

func scanTemplateStage(r rowScanner) (template.Stage, error) {
	var (
		st     template.Stage
		target sql.NullInt64
	)
	if err := r.Scan(&st.ID, &st.TemplateID, &st.Name, &st.Icon, &st.SortOrder, &target); err != nil {
		return template.Stage{}, err
	}
	st.TargetWorkingDays = optInt(target)
	return st, nil
}

// styleDoc is the stored form of a template task's style.
type styleDoc struct {
	BackgroundColor   *string `json:"background_color,omitempty"`
	TextColor         *string `json:"text_color,omitempty"`
	IsBold            *bool   `json:"is_bold,omitempty"`
	TargetWorkingDays *int    `json:"target_working_days,omitempty"`
	DisplayStyle      int     `json:"display_style"`
}

func scanTemplateTask(r rowScanner) (template.Task, error) {
	var (
		t               template.Task
		style, metadata sql.NullString
	)
	if err := r.Scan(&t.ID, &t.TemplateID, &t.TemplateStageID, &t.Title, &t.SortOrder, &style, &metadata); err != nil {
		return template.Task{}, err
	}
	if style.Valid {
		var doc styleDoc
		if err := json.Unmarshal([]byte(style.String), &doc); err != nil {
			return template.Task{}, fmt.Errorf("decode style of %s: %w", t.ID, err)
		}
		t.Style = &template.Style{
			BackgroundColor:   doc.BackgroundColor,
			TextColor:         doc.TextColor,
			IsBold:            doc.IsBold,
			TargetWorkingDays: doc.TargetWorkingDays,
			DisplayStyle:      workflow.DisplayStyle(doc.DisplayStyle),
		}
	}
	if metadata.Valid {
		var m template.Metadata
		if err := json.Unmarshal([]byte(metadata.String), &m); err != nil {
			return template.Task{}, fmt.Errorf("decode metadata of %s: %w", t.ID, err)
		}
		t.Metadata = &m
	}
	return t, nil
}

func encodeContent(t template.Task) (style, metadata any, err error) {
	if t.Style != nil {
		b, err := json.Marshal(styleDoc{
			BackgroundColor:   t.Style.BackgroundColor,
			TextColor:         t.Style.TextColor,
			IsBold:            t.Style.IsBold,
			TargetWorkingDays: t.Style.TargetWorkingDays,
			DisplayStyle:      int(t.Style.DisplayStyle),
		})
		if err != nil {
			return nil, nil, err
		}
		style = string(b)
	}
	if t.Metadata != nil {
		b, err := json.Marshal(t.Metadata)
		if err != nil {
			return nil, nil, err
		}
		metadata = string(b)
	}
	return style, metadata, nil
}

// ListTemplates implements ports.TemplateRepository.
func (s *Store) ListTemplates(ctx context.Context) ([]template.Template, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+templateColumns+" FROM templates ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]template.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	_ = rows.Close()

	stages, err := s.queryTemplateStages(ctx, "1 = 1")
	if err != nil {
		return nil, err
	}
	counts, err := s.templateTaskCounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Stages = stages[out[i].ID]
		if out[i].Stages == nil {
			out[i].Stages = []template.Stage{}
		}
		out[i].TaskCount = counts[out[i].ID]
	}
	return out, nil
}

func (s *Store) queryTemplateStages(ctx context.Context, where string, args ...any) (map[string][]template.Stage, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT "+templateStageColumns+" FROM template_stages WHERE "+where+" ORDER BY template_id, sort_order, id"), args...)
	if err != nil {
		return nil, fmt.Errorf("list template stages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]template.Stage)
	for rows.Next() {
		st, err := scanTemplateStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template stage: %w", err)
		}
		out[st.TemplateID] = append(out[st.TemplateID], st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template stages: %w", err)
	}
	return out, nil
}

func (s *Store) templateTaskCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT template_id, COUNT(*) FROM template_tasks GROUP BY template_id")
	if err != nil {
		return nil, fmt.Errorf("count template tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan template task count: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

// GetTemplate implements ports.TemplateRepository.
func (s *Store) GetTemplate(ctx context.Context, id string) (template.Template, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, s.q("SELECT "+templateColumns+" FROM templates WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return template.Template{}, fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return template.Template{}, fmt.Errorf("get template %s: %w", id, err)
	}

	stages, err := s.queryTemplateStages(ctx, "template_id = ?", id)
	if err != nil {
		return template.Template{}, err
	}
	t.Stages = stages[id]
	if t.Stages == nil {
		t.Stages = []template.Stage{}
	}
	if err := s.db.QueryRowContext(ctx,
		s.q("SELECT COUNT(*) FROM template_tasks WHERE template_id = ?"), id).Scan(&t.TaskCount); err != nil {
		return template.Template{}, fmt.Errorf("count template tasks: %w", err)
	}
	return t, nil
}

// CreateTemplate implements ports.TemplateRepository.
func (s *Store) CreateTemplate(ctx context.Context, t template.Template) error {
	_, err := s.db.ExecContext(ctx,
		s.q("INSERT INTO templates ("+templateColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)"),
		t.ID, t.Name, stringArg(t.Description), t.Icon, stringArg(t.Color), t.MultiStage, s.timeArg(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("create template %s: %w", t.ID, classify(err))
	}
	return nil
}

// UpdateTemplate implements ports.TemplateRepository.
func (s *Store) UpdateTemplate(ctx context.Context, id string, u template.Update) error {
	var (
		cols []string
		args []any
	)
	if u.Name != nil {
		cols, args = append(cols, "name = ?"), append(args, *u.Name)
	}
	if u.Description != nil {
		cols, args = append(cols, "description = ?"), append(args, *u.Description)
	}
	if u.Icon != nil {
		cols, args = append(cols, "icon = ?"), append(args, *u.Icon)
	}
	if u.Color != nil {
		cols, args = append(cols, "color = ?"), append(args, *u.Color)
	}
	if len(cols) == 0 {
		_, err := s.GetTemplate(ctx, id)
		return err
	}

	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE templates SET "+strings.Join(cols, ", ")+" WHERE id = ?"), append(args, id)...)
	if err != nil {
		return fmt.Errorf("update template %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteTemplate implements ports.TemplateRepository. Stages and tasks go
// with it through ON DELETE CASCADE.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM templates WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete template %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// InsertTemplateStages implements ports.TemplateRepository. The batch is all
// or nothing.
func (s *Store) InsertTemplateStages(ctx context.Context, stages []template.Stage) error {
	query := s.q("INSERT INTO template_stages (" + templateStageColumns + ") VALUES (?, ?, ?, ?, ?, ?)")
	return s.write(ctx, func(tx *sql.Tx) ([]workflow.ChangeEvent, error) {
		for _, st := range stages {
			if _, err := tx.ExecContext(ctx, query,
				st.ID, st.TemplateID, st.Name, st.Icon, st.SortOrder, intArg(st.TargetWorkingDays)); err != nil {
				return nil, fmt.Errorf("insert template stage %s: %w", st.ID, classify(err))
			}
		}
		return nil, nil
	})
}

// ListTemplateStages implements ports.TemplateRepository.
func (s *Store) ListTemplateStages(ctx context.Context, templateID string) ([]template.Stage, error) {
	stages, err := s.queryTemplateStages(ctx, "template_id = ?", templateID)
	if err != nil {
		return nil, err
	}
	if out := stages[templateID]; out != nil {
		return out, nil
	}
	return []template.Stage{}, nil
}

// InsertTemplateTasks implements ports.TemplateRepository. The batch is all
// or nothing.
func (s *Store) InsertTemplateTasks(ctx context.Context, tasks []template.Task) error {
	query := s.q("INSERT INTO template_tasks (" + templateTaskColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	return s.write(ctx, func(tx *sql.Tx) ([]workflow.ChangeEvent, error) {
		for _, t := range tasks {
			style, metadata, err := encodeContent(t)
			if err != nil {
				return nil, fmt.Errorf("encode template task %s: %w", t.ID, err)
			}
			if _, err := tx.ExecContext(ctx, query,
				t.ID, t.TemplateID, t.TemplateStageID, t.Title, t.SortOrder, style, metadata); err != nil {
				return nil, fmt.Errorf("insert template task %s: %w", t.ID, classify(err))
			}
		}
		return nil, nil
	})
}

// ListTemplateTasks implements ports.TemplateRepository.
func (s *Store) ListTemplateTasks(ctx context.Context, templateStageIDs []string) ([]template.Task, error) {
	out := make([]template.Task, 0)
	if len(templateStageIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(templateStageIDs))
	for i, id := range templateStageIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT "+templateTaskColumns+" FROM template_tasks WHERE template_stage_id IN ("+
			placeholders(len(args))+") ORDER BY template_stage_id, sort_order, id"), args...)
	if err != nil {
		return nil, fmt.Errorf("list template tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		t, err := scanTemplateTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template tasks: %w", err)
	}
	return out, nil
}

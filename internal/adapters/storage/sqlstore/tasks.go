package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

const taskColumns = `id, owner_id, stage_key, title, completed, completed_at, sort_order,
	background_color, text_color, is_bold, started_at, target_working_days, display_style,
	created_at, updated_at`

func scanTask(r rowScanner) (workflow.Task, error) {
	var (
		t      workflow.Task
		bg, fg sql.NullString
		bold   sql.NullBool
		target sql.NullInt64
		style  int
	)
	err := r.Scan(&t.ID, &t.OwnerID, &t.StageKey, &t.Title, &t.Completed, optInstant{&t.CompletedAt},
		&t.SortOrder, &bg, &fg, &bold, optInstant{&t.StartedAt}, &target, &style,
		instant{&t.CreatedAt}, instant{&t.UpdatedAt})
	if err != nil {
		return workflow.Task{}, err
	}
	t.BackgroundColor = optString(bg)
	t.TextColor = optString(fg)
	t.IsBold = optBool(bold)
	t.TargetWorkingDays = optInt(target)
	t.DisplayStyle = workflow.DisplayStyle(style)
	return t, nil
}

func collectTasks(rows *sql.Rows) ([]workflow.Task, error) {
	defer func() { _ = rows.Close() }()

	out := make([]workflow.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

// ListTasks implements ports.TaskRepository.
func (s *Store) ListTasks(ctx context.Context, ownerID string) ([]workflow.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT "+taskColumns+" FROM tasks WHERE owner_id = ? ORDER BY sort_order, created_at, id"), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

// InsertTasks implements ports.TaskRepository. The batch is all or nothing.
func (s *Store) InsertTasks(ctx context.Context, tasks []workflow.Task) error {
	query := s.q(`INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	return s.write(ctx, func(tx *sql.Tx) ([]workflow.ChangeEvent, error) {
		events := make([]workflow.ChangeEvent, 0, len(tasks))
		for _, t := range tasks {
			_, err := tx.ExecContext(ctx, query,
				t.ID, t.OwnerID, t.StageKey, t.Title, t.Completed, s.optTimeArg(t.CompletedAt), t.SortOrder,
				stringArg(t.BackgroundColor), stringArg(t.TextColor), boolArg(t.IsBold),
				s.optTimeArg(t.StartedAt), intArg(t.TargetWorkingDays), int(t.DisplayStyle),
				s.timeArg(t.CreatedAt), s.timeArg(t.UpdatedAt))
			if err != nil {
				return nil, fmt.Errorf("insert task %s: %w", t.ID, classify(err))
			}
			events = append(events, workflow.TaskInserted(t))
		}
		return events, nil
	})
}

func (s *Store) taskAssignments(p workflow.TaskPatch) ([]string, []any) {
	var (
		cols []string
		args []any
		v    = p.Values
	)
	set := func(col string, arg any) {
		cols = append(cols, col+" = ?")
		args = append(args, arg)
	}
	if p.Fields.Has(workflow.TaskFieldTitle) {
		set("title", v.Title)
	}
	if p.Fields.Has(workflow.TaskFieldCompleted) {
		set("completed", v.Completed)
	}
	if p.Fields.Has(workflow.TaskFieldCompletedAt) {
		set("completed_at", s.optTimeArg(v.CompletedAt))
	}
	if p.Fields.Has(workflow.TaskFieldSortOrder) {
		set("sort_order", v.SortOrder)
	}
	if p.Fields.Has(workflow.TaskFieldBackgroundColor) {
		set("background_color", stringArg(v.BackgroundColor))
	}
	if p.Fields.Has(workflow.TaskFieldTextColor) {
		set("text_color", stringArg(v.TextColor))
	}
	if p.Fields.Has(workflow.TaskFieldIsBold) {
		set("is_bold", boolArg(v.IsBold))
	}
	if p.Fields.Has(workflow.TaskFieldStartedAt) {
		set("started_at", s.optTimeArg(v.StartedAt))
	}
	if p.Fields.Has(workflow.TaskFieldTarget) {
		set("target_working_days", intArg(v.TargetWorkingDays))
	}
	if p.Fields.Has(workflow.TaskFieldDisplayStyle) {
		set("display_style", int(v.DisplayStyle))
	}
	if p.Fields.Has(workflow.TaskFieldUpdatedAt) {
		set("updated_at", s.timeArg(v.UpdatedAt))
	}
	return cols, args
}

// UpdateTask implements ports.TaskRepository.
func (s *Store) UpdateTask(ctx context.Context, id string, patch workflow.TaskPatch) error {
	cols, args := s.taskAssignments(patch)
	return s.write(ctx, func(tx *sql.Tx) ([]workflow.ChangeEvent, error) {
		if len(cols) > 0 {
			query := s.q("UPDATE tasks SET " + strings.Join(cols, ", ") + " WHERE id = ?")
			if _, err := tx.ExecContext(ctx, query, append(args, id)...); err != nil {
				return nil, fmt.Errorf("update task %s: %w", id, err)
			}
		}
		t, err := scanTask(tx.QueryRowContext(ctx, s.q("SELECT "+taskColumns+" FROM tasks WHERE id = ?"), id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("reload task %s: %w", id, err)
		}
		if len(cols) == 0 {
			return nil, nil
		}
		return []workflow.ChangeEvent{workflow.TaskUpdated(t, workflow.TaskFieldsAll)}, nil
	})
}

// DeleteTasks implements ports.TaskRepository. Missing ids are ignored.
func (s *Store) DeleteTasks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.deleteTasksWhere(ctx, "id IN ("+placeholders(len(ids))+")", args)
}

// DeleteTasksByStage implements ports.TaskRepository.
func (s *Store) DeleteTasksByStage(ctx context.Context, ownerID string, stageKeys []string) error {
	if len(stageKeys) == 0 {
		return nil
	}
	args := make([]any, 0, len(stageKeys)+1)
	args = append(args, ownerID)
	for _, k := range stageKeys {
		args = append(args, k)
	}
	return s.deleteTasksWhere(ctx, "owner_id = ? AND stage_key IN ("+placeholders(len(stageKeys))+")", args)
}

func (s *Store) deleteTasksWhere(ctx context.Context, where string, args []any) error {
	return s.write(ctx, func(tx *sql.Tx) ([]workflow.ChangeEvent, error) {
		rows, err := tx.QueryContext(ctx, s.q("SELECT "+taskColumns+" FROM tasks WHERE "+where), args...)
		if err != nil {
			return nil, fmt.Errorf("select tasks: %w", err)
		}
		doomed, err := collectTasks(rows)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, s.q("DELETE FROM tasks WHERE "+where), args...); err != nil {
			return nil, fmt.Errorf("delete tasks: %w", err)
		}
		events := make([]workflow.ChangeEvent, len(doomed))
		for i, t := range doomed {
			events[i] = workflow.TaskDeleted(t)
		}
		return events, nil
	})
}

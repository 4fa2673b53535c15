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

const stageColumns = `id, owner_id, stage_key, name, icon, sort_order, started_at,
	target_working_days, display_style, folder_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStage(r rowScanner) (workflow.Stage, error) {
	var (
		st     workflow.Stage
		target sql.NullInt64
		folder sql.NullString
		style  int
	)
	err := r.Scan(&st.ID, &st.OwnerID, &st.StageKey, &st.Name, &st.Icon, &st.SortOrder,
		optInstant{&st.StartedAt}, &target, &style, &folder,
		instant{&st.CreatedAt}, instant{&st.UpdatedAt})
	if err != nil {
		return workflow.Stage{}, err
	}
	st.TargetWorkingDays = optInt(target)
	st.DisplayStyle = workflow.DisplayStyle(style)
	st.FolderID = optString(folder)
	return st, nil
}

// ListStages implements ports.StageRepository.
func (s *Store) ListStages(ctx context.Context, ownerID string) ([]workflow.Stage, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT "+stageColumns+" FROM stages WHERE owner_id = ? ORDER BY sort_order, created_at, id"), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]workflow.Stage, 0)
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}
	return out, nil
}

// InsertStages implements ports.StageRepository. The batch is all or
// nothing; a duplicate id or stage key is domain.ErrConflict.
func (s *Store) InsertStages(ctx context.Context, stages []workflow.Stage) error {
	query := s.q(`INSERT INTO stages (` + stageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	return s.write(ctx, func(tx *sql.Tx) ([]workflow.ChangeEvent, error) {
		events := make([]workflow.ChangeEvent, 0, len(stages))
		for _, st := range stages {
			_, err := tx.ExecContext(ctx, query,
				st.ID, st.OwnerID, st.StageKey, st.Name, st.Icon, st.SortOrder,
				s.optTimeArg(st.StartedAt), intArg(st.TargetWorkingDays), int(st.DisplayStyle),
				stringArg(st.FolderID), s.timeArg(st.CreatedAt), s.timeArg(st.UpdatedAt))
			if err != nil {
				return nil, fmt.Errorf("insert stage %s: %w", st.ID, classify(err))
			}
			events = append(events, workflow.StageInserted(st))
		}
		return events, nil
	})
}

func (s *Store) stageAssignments(p workflow.StagePatch) ([]string, []any) {
	var (
		cols []string
		args []any
		v    = p.Values
	)
	set := func(col string, arg any) {
		cols = append(cols, col+" = ?")
		args = append(args, arg)
	}
	if p.Fields.Has(workflow.StageFieldName) {
		set("name", v.Name)
	}
	if p.Fields.Has(workflow.StageFieldIcon) {
		set("icon", v.Icon)
	}
	if p.Fields.Has(workflow.StageFieldSortOrder) {
		set("sort_order", v.SortOrder)
	}
	if p.Fields.Has(workflow.StageFieldStartedAt) {
		set("started_at", s.optTimeArg(v.StartedAt))
	}
	if p.Fields.Has(workflow.StageFieldTarget) {
		set("target_working_days", intArg(v.TargetWorkingDays))
	}
	if p.Fields.Has(workflow.StageFieldDisplayStyle) {
		set("display_style", int(v.DisplayStyle))
	}
	if p.Fields.Has(workflow.StageFieldFolder) {
		set("folder_id", stringArg(v.FolderID))
	}
	if p.Fields.Has(workflow.StageFieldUpdatedAt) {
		set("updated_at", s.timeArg(v.UpdatedAt))
	}
	return cols, args
}

// UpdateStage implements ports.StageRepository.
func (s *Store) UpdateStage(ctx context.Context, id string, patch workflow.StagePatch) error {
	cols, args := s.stageAssignments(patch)
	return s.write(ctx, func(tx *sql.Tx) ([]workflow.ChangeEvent, error) {
		if len(cols) > 0 {
			query := s.q("UPDATE stages SET " + strings.Join(cols, ", ") + " WHERE id = ?")
			if _, err := tx.ExecContext(ctx, query, append(args, id)...); err != nil {
				return nil, fmt.Errorf("update stage %s: %w", id, err)
			}
		}
		st, err := scanStage(tx.QueryRowContext(ctx, s.q("SELECT "+stageColumns+" FROM stages WHERE id = ?"), id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("stage %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("reload stage %s: %w", id, err)
		}
		if len(cols) == 0 {
			return nil, nil
		}
		return []workflow.ChangeEvent{workflow.StageUpdated(st, workflow.StageFieldsAll)}, nil
	})
}

// DeleteStages implements ports.StageRepository. Missing ids are ignored.
func (s *Store) DeleteStages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.write(ctx, func(tx *sql.Tx) ([]workflow.ChangeEvent, error) {
		rows, err := tx.QueryContext(ctx,
			s.q("SELECT "+stageColumns+" FROM stages WHERE id IN ("+placeholders(len(ids))+")"), args...)
		if err != nil {
			return nil, fmt.Errorf("select stages: %w", err)
		}
		var events []workflow.ChangeEvent
		for rows.Next() {
			st, err := scanStage(rows)
			if err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan stage: %w", err)
			}
			events = append(events, workflow.StageDeleted(st))
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate stages: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			s.q("DELETE FROM stages WHERE id IN ("+placeholders(len(ids))+")"), args...); err != nil {
			return nil, fmt.Errorf("delete stages: %w", err)
		}
		return events, nil
	})
}

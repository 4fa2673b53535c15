package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tidwall/gjson"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

// NotifyChannel is the PostgreSQL channel the change triggers notify on.
const NotifyChannel = "tracker_changes"

// listen follows NotifyChannel on a dedicated connection, reconnecting
// after listenRetry whenever the connection is lost, until ctx is done.
func (s *Store) listen(ctx context.Context) {
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.WarnContext(ctx, "change listener disconnected",
			slog.String("channel", NotifyChannel),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.listenRetry):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	s.logger.InfoContext(ctx, "listening for changes", slog.String("channel", NotifyChannel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		e, err := decodeNotification(n.Payload)
		if err != nil {
			s.logger.WarnContext(ctx, "dropping undecodable change notification", slog.Any("error", err))
			continue
		}
		s.publish(e)
	}
}

// decodeNotification parses a {"table", "op", "row"} payload produced by
// notify_tracker_change.
func decodeNotification(payload string) (workflow.ChangeEvent, error) {
	if !gjson.Valid(payload) {
		return workflow.ChangeEvent{}, errors.New("payload is not JSON")
	}
	doc := gjson.Parse(payload)
	op := workflow.EventType(doc.Get("op").String())
	if !op.IsValid() {
		return workflow.ChangeEvent{}, fmt.Errorf("unknown op %q", op)
	}
	row := doc.Get("row")
	if !row.IsObject() {
		return workflow.ChangeEvent{}, errors.New("payload has no row")
	}

	switch table := doc.Get("table").String(); table {
	case "stages":
		st, err := StageFromJSON(row)
		if err != nil {
			return workflow.ChangeEvent{}, err
		}
		switch op {
		case workflow.EventInsert:
			return workflow.StageInserted(st), nil
		case workflow.EventUpdate:
			return workflow.StageUpdated(st, workflow.StageFieldsAll), nil
		default:
			return workflow.StageDeleted(st), nil
		}
	case "tasks":
		t, err := TaskFromJSON(row)
		if err != nil {
			return workflow.ChangeEvent{}, err
		}
		switch op {
		case workflow.EventInsert:
			return workflow.TaskInserted(t), nil
		case workflow.EventUpdate:
			return workflow.TaskUpdated(t, workflow.TaskFieldsAll), nil
		default:
			return workflow.TaskDeleted(t), nil
		}
	default:
		return workflow.ChangeEvent{}, fmt.Errorf("unexpected table %q", table)
	}
}

// StageFromJSON reads a stages row encoded with snake_case column names.
// The hosted store's realtime frames use the same encoding.
func StageFromJSON(row gjson.Result) (workflow.Stage, error) {
	st := workflow.Stage{
		ID:        row.Get("id").String(),
		OwnerID:   row.Get("owner_id").String(),
		StageKey:  row.Get("stage_key").String(),
		Name:      row.Get("name").String(),
		Icon:      row.Get("icon").String(),
		SortOrder: int(row.Get("sort_order").Int()),
		FolderID:  jsonString(row.Get("folder_id")),
	}
	if st.ID == "" {
		return workflow.Stage{}, errors.New("stage row has no id")
	}
	st.TargetWorkingDays = jsonInt(row.Get("target_working_days"))
	st.DisplayStyle = workflow.DisplayStyle(row.Get("display_style").Int()).OrDefault()

	var err error
	if st.StartedAt, err = jsonTime(row.Get("started_at")); err != nil {
		return workflow.Stage{}, err
	}
	if st.CreatedAt, err = jsonInstant(row.Get("created_at")); err != nil {
		return workflow.Stage{}, err
	}
	if st.UpdatedAt, err = jsonInstant(row.Get("updated_at")); err != nil {
		return workflow.Stage{}, err
	}
	return st, nil
}

// TaskFromJSON reads a tasks row encoded with snake_case column names.
func TaskFromJSON(row gjson.Result) (workflow.Task, error) {
	t := workflow.Task{
		ID:        row.Get("id").String(),
		OwnerID:   row.Get("owner_id").String(),
		StageKey:  row.Get("stage_key").String(),
		Title:     row.Get("title").String(),
		Completed: row.Get("completed").Bool(),
		SortOrder: int(row.Get("sort_order").Int()),
	}
	if t.ID == "" {
		return workflow.Task{}, errors.New("task row has no id")
	}
	t.BackgroundColor = jsonString(row.Get("background_color"))
	t.TextColor = jsonString(row.Get("text_color"))
	if b := row.Get("is_bold"); b.Exists() && b.Type != gjson.Null {
		v := b.Bool()
		t.IsBold = &v
	}
	t.TargetWorkingDays = jsonInt(row.Get("target_working_days"))
	t.DisplayStyle = workflow.DisplayStyle(row.Get("display_style").Int()).OrDefault()

	var err error
	if t.CompletedAt, err = jsonTime(row.Get("completed_at")); err != nil {
		return workflow.Task{}, err
	}
	if t.StartedAt, err = jsonTime(row.Get("started_at")); err != nil {
		return workflow.Task{}, err
	}
	if t.CreatedAt, err = jsonInstant(row.Get("created_at")); err != nil {
		return workflow.Task{}, err
	}
	if t.UpdatedAt, err = jsonInstant(row.Get("updated_at")); err != nil {
		return workflow.Task{}, err
	}
	return t, nil
}

func jsonString(r gjson.Result) *string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	v := r.String()
	return &v
}

func jsonInt(r gjson.Result) *int {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	v := int(r.Int())
	return &v
}

func jsonTime(r gjson.Result) (*time.Time, error) {
	if !r.Exists() || r.Type == gjson.Null || r.String() == "" {
		return nil, nil
	}
	t, err := parseTime(r.String())
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func jsonInstant(r gjson.Result) (time.Time, error) {
	t, err := jsonTime(r)
	if err != nil || t == nil {
		return time.Time{}, err
	}
	return *t, nil
}

package sqlstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "tracker.db")
	s, err := Open(ctx, DialectSQLite, dsn, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func stage(id, owner, key string, order int) workflow.Stage {
	return workflow.Stage{
		ID: id, OwnerID: owner, StageKey: key, Name: "Stage " + key, Icon: workflow.DefaultStageIcon,
		SortOrder: order, Timer: workflow.Timer{DisplayStyle: 1}, CreatedAt: t0, UpdatedAt: t0,
	}
}

func task(id, owner, key, title string, order int) workflow.Task {
	return workflow.Task{
		ID: id, OwnerID: owner, StageKey: key, Title: title, SortOrder: order,
		Timer: workflow.Timer{DisplayStyle: 1}, CreatedAt: t0, UpdatedAt: t0,
	}
}

func next(t *testing.T, ch <-chan workflow.ChangeEvent) workflow.ChangeEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no change event")
		return workflow.ChangeEvent{}
	}
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.HealthCheck(context.Background()))
	assert.Equal(t, "store", s.Name())
}

func TestStore_StagesLifecycleAndFeed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	feed, err := s.Subscribe(ctx, "o1", workflow.EntityStage)
	require.NoError(t, err)

	days := 3
	folder := "f1"
	second := stage("s2", "o1", "b", 1)
	second.TargetWorkingDays = &days
	second.FolderID = &folder
	require.NoError(t, s.InsertStages(ctx, []workflow.Stage{second, stage("s1", "o1", "a", 0), stage("x", "o2", "a", 0)}))

	got, err := s.ListStages(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].StageKey)
	assert.Equal(t, second, got[1])

	assert.Equal(t, workflow.EventInsert, next(t, feed).Type)
	assert.Equal(t, workflow.EventInsert, next(t, feed).Type)

	started := t0.Add(time.Hour)
	patch := workflow.StagePatch{
		Values: workflow.Stage{Name: "Renamed", Timer: workflow.Timer{StartedAt: &started}},
		Fields: workflow.StageFieldName | workflow.StageFieldStartedAt,
	}
	require.NoError(t, s.UpdateStage(ctx, "s1", patch))
	e := next(t, feed)
	assert.Equal(t, workflow.EventUpdate, e.Type)
	assert.Equal(t, workflow.StageFieldsAll, e.StageFields)
	assert.Equal(t, "Renamed", e.Stage.Name)
	require.NotNil(t, e.Stage.StartedAt)
	assert.True(t, e.Stage.StartedAt.Equal(started))

	err = s.UpdateStage(ctx, "missing", patch)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.DeleteStages(ctx, []string{"s1", "missing"}))
	e = next(t, feed)
	assert.Equal(t, workflow.EventDelete, e.Type)
	assert.Equal(t, "s1", e.ID())

	got, err = s.ListStages(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_InsertStagesRejectsDuplicateKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.InsertStages(ctx, []workflow.Stage{stage("s1", "o1", "a", 0)}))

	err := s.InsertStages(ctx, []workflow.Stage{stage("s2", "o1", "b", 1), stage("s3", "o1", "a", 2)})
	require.ErrorIs(t, err, domain.ErrConflict)

	got, err := s.ListStages(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, got, 1, "batch must be all or nothing")
}

func TestStore_TasksRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	bg, bold := "#ffeeaa", true
	done := t0.Add(30 * time.Minute)
	styled := task("t1", "o1", "a", "Styled", 0)
	styled.Completed = true
	styled.CompletedAt = &done
	styled.BackgroundColor = &bg
	styled.IsBold = &bold
	require.NoError(t, s.InsertTasks(ctx, []workflow.Task{styled, task("t2", "o1", "a", "Plain", 1), task("t3", "o1", "b", "Other", 0)}))

	got, err := s.ListTasks(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, styled, got[0])
	assert.Nil(t, got[2].IsBold)

	patch := workflow.CompletionPatch(nil)
	require.NoError(t, s.UpdateTask(ctx, "t1", patch))
	got, err = s.ListTasks(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, got[0].Completed)
	assert.Nil(t, got[0].CompletedAt)

	assert.ErrorIs(t, s.UpdateTask(ctx, "missing", patch), domain.ErrNotFound)
	assert.ErrorIs(t, s.InsertTasks(ctx, []workflow.Task{task("t1", "o1", "a", "Dup", 5)}), domain.ErrConflict)

	require.NoError(t, s.DeleteTasksByStage(ctx, "o1", []string{"a"}))
	got, err = s.ListTasks(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t3", got[0].ID)

	require.NoError(t, s.DeleteTasks(ctx, []string{"t3"}))
	got, err = s.ListTasks(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_TemplatesCascadeAndContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	desc := "weekly"
	older := template.Template{ID: "tpl-old", Name: "Old", Icon: "A", MultiStage: true, CreatedAt: t0}
	newer := template.Template{ID: "tpl", Name: "New", Description: &desc, Icon: "B", CreatedAt: t0.Add(time.Hour)}
	require.NoError(t, s.CreateTemplate(ctx, older))
	require.NoError(t, s.CreateTemplate(ctx, newer))

	days := 4
	require.NoError(t, s.InsertTemplateStages(ctx, []template.Stage{
		{ID: "ts2", TemplateID: "tpl", Name: "Second", Icon: "x", SortOrder: 1},
		{ID: "ts1", TemplateID: "tpl", Name: "First", Icon: "x", SortOrder: 0, TargetWorkingDays: &days},
	}))
	bold := true
	completed := t0.Add(2 * time.Hour)
	withContent := template.Task{
		ID: "tt1", TemplateID: "tpl", TemplateStageID: "ts1", Title: "Call", SortOrder: 0,
		Style:    &template.Style{IsBold: &bold, DisplayStyle: 3},
		Metadata: &template.Metadata{Completed: true, CompletedAt: &completed},
	}
	require.NoError(t, s.InsertTemplateTasks(ctx, []template.Task{
		withContent,
		{ID: "tt2", TemplateID: "tpl", TemplateStageID: "ts2", Title: "Check", SortOrder: 0},
	}))

	err := s.InsertTemplateStages(ctx, []template.Stage{{ID: "bad", TemplateID: "missing", Name: "n", Icon: "i"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "tpl", list[0].ID)
	assert.Equal(t, 2, list[0].TaskCount)
	require.Len(t, list[0].Stages, 2)
	assert.Equal(t, "First", list[0].Stages[0].Name)
	assert.Empty(t, list[1].Stages)

	tasks, err := s.ListTemplateTasks(ctx, []string{"ts1"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].Style)
	assert.Equal(t, workflow.DisplayStyle(3), tasks[0].Style.DisplayStyle)
	require.NotNil(t, tasks[0].Metadata)
	assert.True(t, tasks[0].Metadata.Completed)
	assert.True(t, tasks[0].Metadata.CompletedAt.Equal(completed))

	name := "Renamed"
	require.NoError(t, s.UpdateTemplate(ctx, "tpl", template.Update{Name: &name}))
	got, err := s.GetTemplate(ctx, "tpl")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
	assert.ErrorIs(t, s.UpdateTemplate(ctx, "missing", template.Update{Name: &name}), domain.ErrNotFound)

	require.NoError(t, s.DeleteTemplate(ctx, "tpl"))
	_, err = s.GetTemplate(ctx, "tpl")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	tasks, err = s.ListTemplateTasks(ctx, []string{"ts1", "ts2"})
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.ErrorIs(t, s.DeleteTemplate(ctx, "tpl"), domain.ErrNotFound)
}

func TestRebind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{DialectSQLite, "a = ? AND b IN (?,?)", "a = ? AND b IN (?,?)"},
		{DialectPostgres, "a = ? AND b IN (?,?)", "a = $1 AND b IN ($2,$3)"},
		{DialectPostgres, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		if got := rebind(tt.dialect, tt.in); got != tt.want {
			t.Errorf("rebind(%s, %q) = %q, want %q", tt.dialect, tt.in, got, tt.want)
		}
	}
}

func TestParseDialect(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Dialect{"sqlite3": DialectSQLite, "PG": DialectPostgres, "postgres": DialectPostgres} {
		got, err := ParseDialect(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "file:x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:x.db"))
	assert.Equal(t, "file:x.db?_pragma=busy_timeout(100)&_pragma=foreign_keys(1)",
		sqliteDSN("file:x.db?_pragma=busy_timeout(100)"))
}

package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/storage/memory"
	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func stage(id, owner, key string, order int) workflow.Stage {
	return workflow.Stage{ID: id, OwnerID: owner, StageKey: key, Name: key, SortOrder: order, CreatedAt: t0, UpdatedAt: t0}
}

func task(id, owner, key, title string, order int) workflow.Task {
	return workflow.Task{ID: id, OwnerID: owner, StageKey: key, Title: title, SortOrder: order, CreatedAt: t0, UpdatedAt: t0}
}

func next(t *testing.T, ch <-chan workflow.ChangeEvent) workflow.ChangeEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change event")
	}
	return workflow.ChangeEvent{}
}

func TestStore_StagesLifecycleAndFeed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()
	t.Cleanup(s.Close)

	feed, err := s.Subscribe(ctx, "o1", workflow.EntityStage)
	require.NoError(t, err)

	require.NoError(t, s.InsertStages(ctx, []workflow.Stage{stage("s2", "o1", "b", 1), stage("s1", "o1", "a", 0)}))
	assert.Equal(t, workflow.EventInsert, next(t, feed).Type)
	assert.Equal(t, workflow.EventInsert, next(t, feed).Type)

	got, err := s.ListStages(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].StageKey)

	patch := workflow.StagePatch{Values: workflow.Stage{Name: "Renamed"}, Fields: workflow.StageFieldName}
	require.NoError(t, s.UpdateStage(ctx, "s1", patch))
	e := next(t, feed)
	assert.Equal(t, workflow.EventUpdate, e.Type)
	assert.Equal(t, "Renamed", e.Stage.Name)
	assert.Equal(t, "a", e.Stage.StageKey, "update event carries the full row")

	require.NoError(t, s.DeleteStages(ctx, []string{"s1", "missing"}))
	assert.Equal(t, workflow.EventDelete, next(t, feed).Type)

	err = s.UpdateStage(ctx, "s1", patch)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_InsertStagesRejectsDuplicateKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()
	t.Cleanup(s.Close)

	require.NoError(t, s.InsertStages(ctx, []workflow.Stage{stage("s1", "o1", "a", 0)}))

	err := s.InsertStages(ctx, []workflow.Stage{stage("s2", "o1", "b", 1), stage("s3", "o1", "a", 2)})
	require.ErrorIs(t, err, domain.ErrConflict)

	got, err := s.ListStages(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed batch writes nothing")

	require.NoError(t, s.InsertStages(ctx, []workflow.Stage{stage("s4", "o2", "a", 0)}), "keys are per owner")
}

func TestStore_DeleteTasksByStage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()
	t.Cleanup(s.Close)

	require.NoError(t, s.InsertTasks(ctx, []workflow.Task{
		task("t1", "o1", "a", "one", 0),
		task("t2", "o1", "b", "two", 0),
		task("t3", "o2", "a", "three", 0),
	}))
	require.NoError(t, s.DeleteTasksByStage(ctx, "o1", []string{"a"}))

	o1, err := s.ListTasks(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, o1, 1)
	assert.Equal(t, "t2", o1[0].ID)

	o2, err := s.ListTasks(ctx, "o2")
	require.NoError(t, err)
	assert.Len(t, o2, 1)
}

func TestStore_TemplateCascade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()
	t.Cleanup(s.Close)

	require.NoError(t, s.CreateTemplate(ctx, template.Template{ID: "tpl", Name: "Onboarding", CreatedAt: t0}))
	require.NoError(t, s.InsertTemplateStages(ctx, []template.Stage{{ID: "ts1", TemplateID: "tpl", Name: "A"}}))
	require.NoError(t, s.InsertTemplateTasks(ctx, []template.Task{
		{ID: "tt1", TemplateID: "tpl", TemplateStageID: "ts1", Title: "x"},
		{ID: "tt2", TemplateID: "tpl", TemplateStageID: "ts1", Title: "y", SortOrder: 1},
	}))

	got, err := s.GetTemplate(ctx, "tpl")
	require.NoError(t, err)
	assert.Equal(t, 2, got.TaskCount)
	assert.Len(t, got.Stages, 1)

	require.NoError(t, s.DeleteTemplate(ctx, "tpl"))

	tasks, err := s.ListTemplateTasks(ctx, []string{"ts1"})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = s.GetTemplate(ctx, "tpl")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_FaultInjection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()
	t.Cleanup(s.Close)

	boom := errors.New("boom")
	s.FailAfter("InsertTasks", 1, boom)

	require.NoError(t, s.InsertTasks(ctx, []workflow.Task{task("t1", "o1", "a", "one", 0)}))
	require.ErrorIs(t, s.InsertTasks(ctx, []workflow.Task{task("t2", "o1", "a", "two", 1)}), boom)

	s.Heal()
	require.NoError(t, s.InsertTasks(ctx, []workflow.Task{task("t2", "o1", "a", "two", 1)}))
}

package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

func TestDecodeNotification_StageUpdate(t *testing.T) {
	t.Parallel()

	payload := `{"table":"stages","op":"UPDATE","row":{
		"id":"s1","owner_id":"o1","stage_key":"intake","name":"Intake","icon":"Inbox",
		"sort_order":2,"started_at":"2026-03-02T09:00:00+00:00","target_working_days":5,
		"display_style":3,"folder_id":null,
		"created_at":"2026-03-01T08:00:00.123456+00:00","updated_at":"2026-03-02T09:00:00+00:00"}}`

	e, err := decodeNotification(payload)
	require.NoError(t, err)
	assert.Equal(t, workflow.EventUpdate, e.Type)
	assert.Equal(t, workflow.EntityStage, e.Entity)
	assert.Equal(t, "o1", e.OwnerID)
	assert.Equal(t, workflow.StageFieldsAll, e.StageFields)
	assert.Equal(t, 2, e.Stage.SortOrder)
	require.NotNil(t, e.Stage.TargetWorkingDays)
	assert.Equal(t, 5, *e.Stage.TargetWorkingDays)
	assert.Nil(t, e.Stage.FolderID)
	require.NotNil(t, e.Stage.StartedAt)
	assert.Equal(t, 9, e.Stage.StartedAt.Hour())
	assert.Equal(t, 123456000, e.Stage.CreatedAt.Nanosecond())
}

func TestDecodeNotification_TaskDelete(t *testing.T) {
	t.Parallel()

	payload := `{"table":"tasks","op":"DELETE","row":{"id":"t1","owner_id":"o1","stage_key":"a",
		"title":"Call","completed":true,"is_bold":false,"display_style":0,
		"created_at":"2026-03-01T08:00:00+00:00","updated_at":"2026-03-01T08:00:00+00:00"}}`

	e, err := decodeNotification(payload)
	require.NoError(t, err)
	assert.Equal(t, workflow.EventDelete, e.Type)
	assert.Equal(t, "t1", e.ID())
	assert.True(t, e.Task.Completed)
	require.NotNil(t, e.Task.IsBold)
	assert.False(t, *e.Task.IsBold)
	assert.Equal(t, workflow.DisplayStyleFirst, e.Task.DisplayStyle)
}

func TestDecodeNotification_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "nope"},
		{name: "unknown op", payload: `{"table":"tasks","op":"TRUNCATE","row":{"id":"t1"}}`},
		{name: "missing row", payload: `{"table":"tasks","op":"INSERT"}`},
		{name: "other table", payload: `{"table":"templates","op":"INSERT","row":{"id":"x"}}`},
		{name: "row without id", payload: `{"table":"stages","op":"INSERT","row":{"name":"x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := decodeNotification(tt.payload)
			assert.Error(t, err)
		})
	}
}

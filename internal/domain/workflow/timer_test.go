package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
)

func TestDisplayStyle_Next(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   DisplayStyle
		want DisplayStyle
	}{
		{in: 1, want: 2},
		{in: 2, want: 3},
		{in: 3, want: 4},
		{in: 4, want: 5},
		{in: 5, want: 1},
		{in: 0, want: 1},
		{in: 9, want: 1},
	}

	for _, tt := range tests {
		if got := tt.in.Next(); got != tt.want {
			t.Errorf("DisplayStyle(%d).Next() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStartTimer(t *testing.T) {
	t.Parallel()

	change, err := StartTimer(t0, 10)
	require.NoError(t, err)

	patch := change.TaskPatch()
	assert.Equal(t, TaskFieldStartedAt|TaskFieldTarget, patch.Fields)
	require.NotNil(t, patch.Values.StartedAt)
	assert.True(t, patch.Values.StartedAt.Equal(t0))
	assert.Equal(t, 10, *patch.Values.TargetWorkingDays)

	_, err = StartTimer(t0, 0)
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestStopTimer_ClearsBothFields(t *testing.T) {
	t.Parallel()

	started := t0
	days := 3
	s := Stage{Timer: Timer{StartedAt: &started, TargetWorkingDays: &days, DisplayStyle: 4}}

	p := StopTimer().StagePatch()
	s.Merge(p.Values, p.Fields)

	assert.Nil(t, s.StartedAt)
	assert.Nil(t, s.TargetWorkingDays)
	assert.Equal(t, DisplayStyle(4), s.DisplayStyle)
}

func TestRetargetTimer_KeepsStart(t *testing.T) {
	t.Parallel()

	started := t0
	days := 3
	task := Task{Timer: Timer{StartedAt: &started, TargetWorkingDays: &days}}

	change, err := RetargetTimer(7)
	require.NoError(t, err)
	p := change.TaskPatch()
	task.Merge(p.Values, p.Fields)

	require.NotNil(t, task.StartedAt)
	assert.True(t, task.StartedAt.Equal(t0))
	assert.Equal(t, 7, *task.TargetWorkingDays)
}

func TestCycleTimerStyle(t *testing.T) {
	t.Parallel()

	p := CycleTimerStyle(Timer{DisplayStyle: 5}).StagePatch()
	assert.Equal(t, StageFieldDisplayStyle, p.Fields)
	assert.Equal(t, DisplayStyle(1), p.Values.DisplayStyle)
}

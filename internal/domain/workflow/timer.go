package workflow

import (
	"fmt"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
)

// DisplayStyle is a rendering hint for a progress timer. Valid values are
// 1 through 5; it is persisted so the choice survives a reload.
type DisplayStyle int

const (
	DisplayStyleFirst DisplayStyle = 1
	DisplayStyleLast  DisplayStyle = 5
)

// IsValid returns true if the style is within 1..5.
func (s DisplayStyle) IsValid() bool {
	return s >= DisplayStyleFirst && s <= DisplayStyleLast
}

// Next returns the following style, wrapping 5 back to 1. Out of range
// values restart the cycle at 1.
func (s DisplayStyle) Next() DisplayStyle {
	if !s.IsValid() || s == DisplayStyleLast {
		return DisplayStyleFirst
	}
	return s + 1
}

// OrDefault returns s, or 1 when s is unset or out of range.
func (s DisplayStyle) OrDefault() DisplayStyle {
	if !s.IsValid() {
		return DisplayStyleFirst
	}
	return s
}

// Timer holds the progress-timer fields shared by stages and tasks. Elapsed
// and remaining working days are not computed here.
type Timer struct {
	StartedAt         *time.Time
	TargetWorkingDays *int
	DisplayStyle      DisplayStyle
}

// Running reports whether the timer has been started.
func (t Timer) Running() bool {
	return t.StartedAt != nil
}

// TimerChange is a partial update of Timer fields. Only the flagged fields
// are written.
type TimerChange struct {
	Timer   Timer
	Started bool
	Target  bool
	Style   bool
}

// StartTimer sets startedAt and the target together.
func StartTimer(now time.Time, targetWorkingDays int) (TimerChange, error) {
	if err := validateTarget(targetWorkingDays); err != nil {
		return TimerChange{}, err
	}
	started := now.UTC()
	target := targetWorkingDays
	return TimerChange{
		Timer:   Timer{StartedAt: &started, TargetWorkingDays: &target},
		Started: true,
		Target:  true,
	}, nil
}

// StopTimer clears startedAt and the target.
func StopTimer() TimerChange {
	return TimerChange{Started: true, Target: true}
}

// RetargetTimer changes the target only; a running clock keeps its start.
func RetargetTimer(targetWorkingDays int) (TimerChange, error) {
	if err := validateTarget(targetWorkingDays); err != nil {
		return TimerChange{}, err
	}
	target := targetWorkingDays
	return TimerChange{Timer: Timer{TargetWorkingDays: &target}, Target: true}, nil
}

// CycleTimerStyle advances the display style of current.
func CycleTimerStyle(current Timer) TimerChange {
	return TimerChange{Timer: Timer{DisplayStyle: current.DisplayStyle.Next()}, Style: true}
}

// StagePatch converts the change into a stage patch.
func (c TimerChange) StagePatch() StagePatch {
	var p StagePatch
	p.Values.Timer = c.Timer
	if c.Started {
		p.Fields |= StageFieldStartedAt
	}
	if c.Target {
		p.Fields |= StageFieldTarget
	}
	if c.Style {
		p.Fields |= StageFieldDisplayStyle
	}
	return p
}

// TaskPatch converts the change into a task patch.
func (c TimerChange) TaskPatch() TaskPatch {
	var p TaskPatch
	p.Values.Timer = c.Timer
	if c.Started {
		p.Fields |= TaskFieldStartedAt
	}
	if c.Target {
		p.Fields |= TaskFieldTarget
	}
	if c.Style {
		p.Fields |= TaskFieldDisplayStyle
	}
	return p
}

func validateTarget(days int) error {
	if days <= 0 {
		return domain.NewValidationError("target_working_days", fmt.Sprintf("%s, got %d", domain.MsgPositive, days))
	}
	return nil
}

// Ref addresses a timer holder: a stage by stage key or a task by id.
type Ref struct {
	Entity EntityKind
	Key    string
}

// StageRef addresses the stage with stageKey.
func StageRef(stageKey string) Ref {
	return Ref{Entity: EntityStage, Key: stageKey}
}

// TaskRef addresses the task with id.
func TaskRef(id string) Ref {
	return Ref{Entity: EntityTask, Key: id}
}

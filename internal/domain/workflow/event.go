package workflow

import "slices"

// EventType is the kind of row change carried by a ChangeEvent.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// IsValid returns true if the event type is one of the defined constants.
func (e EventType) IsValid() bool {
	switch e {
	case EventInsert, EventUpdate, EventDelete:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (e EventType) String() string {
	return string(e)
}

// EntityKind names the row type a ChangeEvent refers to.
type EntityKind string

const (
	EntityStage EntityKind = "stage"
	EntityTask  EntityKind = "task"
)

// IsValid returns true if the kind is one of the defined constants.
func (k EntityKind) IsValid() bool {
	return k == EntityStage || k == EntityTask
}

// String implements fmt.Stringer.
func (k EntityKind) String() string {
	return string(k)
}

// ChangeEvent is a row-level change for one owner. Exactly one of Stage or
// Task is meaningful, selected by Entity. Update events merge only the
// fields flagged in StageFields or TaskFields; delete events need only the
// row id.
type ChangeEvent struct {
	Type        EventType
	Entity      EntityKind
	OwnerID     string
	Stage       Stage
	StageFields StageField
	Task        Task
	TaskFields  TaskField
}

// ID returns the row id the event refers to.
func (e ChangeEvent) ID() string {
	if e.Entity == EntityStage {
		return e.Stage.ID
	}
	return e.Task.ID
}

// Key names the row change e describes: the entity, the kind of change and
// the row id. A store echo of a local write has the same key.
func (e ChangeEvent) Key() string {
	id := e.ID()
	if id == "" {
		return ""
	}
	return string(e.Entity) + ":" + string(e.Type) + ":" + id
}

// StageInserted builds an insert event for s.
func StageInserted(s Stage) ChangeEvent {
	return ChangeEvent{Type: EventInsert, Entity: EntityStage, OwnerID: s.OwnerID, Stage: s}
}

// StageUpdated builds an update event for the flagged fields of s.
func StageUpdated(s Stage, fields StageField) ChangeEvent {
	return ChangeEvent{Type: EventUpdate, Entity: EntityStage, OwnerID: s.OwnerID, Stage: s, StageFields: fields}
}

// StageDeleted builds a delete event for s.
func StageDeleted(s Stage) ChangeEvent {
	return ChangeEvent{Type: EventDelete, Entity: EntityStage, OwnerID: s.OwnerID, Stage: s}
}

// TaskInserted builds an insert event for t.
func TaskInserted(t Task) ChangeEvent {
	return ChangeEvent{Type: EventInsert, Entity: EntityTask, OwnerID: t.OwnerID, Task: t}
}

// TaskUpdated builds an update event for the flagged fields of t.
func TaskUpdated(t Task, fields TaskField) ChangeEvent {
	return ChangeEvent{Type: EventUpdate, Entity: EntityTask, OwnerID: t.OwnerID, Task: t, TaskFields: fields}
}

// TaskDeleted builds a delete event for t.
func TaskDeleted(t Task) ChangeEvent {
	return ChangeEvent{Type: EventDelete, Entity: EntityTask, OwnerID: t.OwnerID, Task: t}
}

// Reduce applies one change event to s and returns the resulting state.
// Inserts are dropped when the id is already present, updates and deletes
// for unknown ids are no-ops, and events for another owner are ignored.
// Applying the same event twice yields the same state as applying it once.
func Reduce(s State, e ChangeEvent) State {
	if e.OwnerID != "" && s.OwnerID != "" && e.OwnerID != s.OwnerID {
		return s
	}
	if e.ID() == "" {
		return s
	}
	switch e.Entity {
	case EntityStage:
		if stages, ok := reduceStages(s.Stages, e); ok {
			return State{OwnerID: s.OwnerID, Stages: stages, Tasks: s.Tasks}
		}
	case EntityTask:
		if tasks, ok := reduceTasks(s.Tasks, e); ok {
			return State{OwnerID: s.OwnerID, Stages: s.Stages, Tasks: tasks}
		}
	}
	return s
}

func reduceStages(stages []Stage, e ChangeEvent) ([]Stage, bool) {
	idx := slices.IndexFunc(stages, func(st Stage) bool { return st.ID == e.Stage.ID })
	switch e.Type {
	case EventInsert:
		if idx >= 0 {
			return nil, false
		}
		out := make([]Stage, len(stages), len(stages)+1)
		copy(out, stages)
		return append(out, e.Stage), true
	case EventUpdate:
		if idx < 0 {
			return nil, false
		}
		out := slices.Clone(stages)
		out[idx].Merge(e.Stage, e.StageFields)
		return out, true
	case EventDelete:
		if idx < 0 {
			return nil, false
		}
		return slices.Delete(slices.Clone(stages), idx, idx+1), true
	}
	return nil, false
}

func reduceTasks(tasks []Task, e ChangeEvent) ([]Task, bool) {
	idx := slices.IndexFunc(tasks, func(t Task) bool { return t.ID == e.Task.ID })
	switch e.Type {
	case EventInsert:
		if idx >= 0 {
			return nil, false
		}
		out := make([]Task, len(tasks), len(tasks)+1)
		copy(out, tasks)
		return append(out, e.Task), true
	case EventUpdate:
		if idx < 0 {
			return nil, false
		}
		out := slices.Clone(tasks)
		out[idx].Merge(e.Task, e.TaskFields)
		return out, true
	case EventDelete:
		if idx < 0 {
			return nil, false
		}
		return slices.Delete(slices.Clone(tasks), idx, idx+1), true
	}
	return nil, false
}

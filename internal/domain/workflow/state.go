package workflow

import (
	"slices"
	"time"
)

// State is one owner's flat set of stages and tasks. Values are treated as
// immutable: every transition returns a new State and never writes through
// the receiver's slices.
type State struct {
	OwnerID string
	Stages  []Stage
	Tasks   []Task
}

// StageView is a stage together with its ordered tasks.
type StageView struct {
	Stage
	Tasks []Task
}

// NewState builds a State for owner from unordered rows.
func NewState(ownerID string, stages []Stage, tasks []Task) State {
	return State{
		OwnerID: ownerID,
		Stages:  slices.Clone(stages),
		Tasks:   slices.Clone(tasks),
	}
}

// View returns stages ordered by sortOrder, each with its tasks ordered by
// sortOrder. Tasks whose stage is absent are omitted.
func (s State) View() []StageView {
	stages := slices.Clone(s.Stages)
	slices.SortStableFunc(stages, func(a, b Stage) int { return compareOrder(a.SortOrder, b.SortOrder, a.CreatedAt, b.CreatedAt) })

	byKey := make(map[string][]Task, len(stages))
	for _, t := range s.Tasks {
		byKey[t.StageKey] = append(byKey[t.StageKey], t)
	}

	views := make([]StageView, 0, len(stages))
	for _, st := range stages {
		tasks := byKey[st.StageKey]
		slices.SortStableFunc(tasks, func(a, b Task) int { return compareOrder(a.SortOrder, b.SortOrder, a.CreatedAt, b.CreatedAt) })
		if tasks == nil {
			tasks = []Task{}
		}
		views = append(views, StageView{Stage: st, Tasks: tasks})
	}
	return views
}

// StageByKey looks up a stage by its stage key.
func (s State) StageByKey(key string) (Stage, bool) {
	for _, st := range s.Stages {
		if st.StageKey == key {
			return st, true
		}
	}
	return Stage{}, false
}

// StageByID looks up a stage by row id.
func (s State) StageByID(id string) (Stage, bool) {
	for _, st := range s.Stages {
		if st.ID == id {
			return st, true
		}
	}
	return Stage{}, false
}

// TaskByID looks up a task by row id.
func (s State) TaskByID(id string) (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// TasksOf returns the tasks of a stage in storage order.
func (s State) TasksOf(stageKey string) []Task {
	var out []Task
	for _, t := range s.Tasks {
		if t.StageKey == stageKey {
			out = append(out, t)
		}
	}
	return out
}

// MaxStageOrder returns the highest stage sortOrder, or -1 with no stages.
func (s State) MaxStageOrder() int {
	maxOrder := -1
	for _, st := range s.Stages {
		maxOrder = max(maxOrder, st.SortOrder)
	}
	return maxOrder
}

// MaxTaskOrder returns the highest task sortOrder in a stage, or -1.
func (s State) MaxTaskOrder(stageKey string) int {
	maxOrder := -1
	for _, t := range s.Tasks {
		if t.StageKey == stageKey {
			maxOrder = max(maxOrder, t.SortOrder)
		}
	}
	return maxOrder
}

func compareOrder(a, b int, ca, cb time.Time) int {
	if a != b {
		return a - b
	}
	return ca.Compare(cb)
}

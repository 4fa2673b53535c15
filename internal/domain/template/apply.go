package template

// ApplyState is a step of materializing a template into an owner.
type ApplyState string

const (
	StatePreparing       ApplyState = "PREPARING"
	StateInsertingStages ApplyState = "INSERTING_STAGES"
	StateInsertingTasks  ApplyState = "INSERTING_TASKS"
	StateReloading       ApplyState = "RELOADING"
	StateDone            ApplyState = "DONE"
	StateFailed          ApplyState = "FAILED"
)

var applyNext = map[ApplyState]ApplyState{
	StatePreparing:       StateInsertingStages,
	StateInsertingStages: StateInsertingTasks,
	StateInsertingTasks:  StateReloading,
	StateReloading:       StateDone,
}

// IsTerminal reports whether no transition leaves s.
func (s ApplyState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether to may follow s. FAILED is reachable from
// every non-terminal state.
func (s ApplyState) CanTransition(to ApplyState) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return applyNext[s] == to
}

// String implements fmt.Stringer.
func (s ApplyState) String() string {
	return string(s)
}

// ApplyOptions tunes ApplyTemplate.
type ApplyOptions struct {
	IncludeContent bool
	// FolderID, when set, is stamped on every created stage.
	FolderID *string
}

// ApplyReport describes one ApplyTemplate run.
type ApplyReport struct {
	TemplateID   string
	State        ApplyState
	Transitions  []ApplyState
	StageKeys    []string
	TasksCreated int
}

// Advance moves the report to the next state. It panics on an illegal
// transition, which is a programming error.
func (r *ApplyReport) Advance(to ApplyState) {
	if r.State == "" {
		r.State = StatePreparing
		r.Transitions = append(r.Transitions, StatePreparing)
	}
	if r.State == to {
		return
	}
	if !r.State.CanTransition(to) {
		panic("template: illegal apply transition " + string(r.State) + " -> " + string(to))
	}
	r.State = to
	r.Transitions = append(r.Transitions, to)
}

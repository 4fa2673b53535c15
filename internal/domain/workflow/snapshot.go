package workflow

import (
	"strings"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
)

// CopySuffix is appended to the name of a pasted stage.
const CopySuffix = " (copy)"

// StageSnapshot is an identifier-free export of a stage and its task titles.
type StageSnapshot struct {
	Name  string
	Icon  string
	Tasks []SnapshotTask
}

// SnapshotTask is one task inside a StageSnapshot.
type SnapshotTask struct {
	Title     string
	Completed bool
}

// Snapshot exports v without any ids or keys.
func Snapshot(v StageView) StageSnapshot {
	tasks := make([]SnapshotTask, 0, len(v.Tasks))
	for _, t := range v.Tasks {
		tasks = append(tasks, SnapshotTask{Title: t.Title, Completed: t.Completed})
	}
	return StageSnapshot{Name: v.Name, Icon: v.Icon, Tasks: tasks}
}

// Validate checks that the snapshot can be pasted.
func (s *StageSnapshot) Validate() error {
	fields := make(map[string]string)
	if strings.TrimSpace(s.Name) == "" {
		fields["name"] = domain.MsgRequired
	}
	for _, t := range s.Tasks {
		if strings.TrimSpace(t.Title) == "" {
			fields["tasks"] = "task title " + domain.MsgRequired
			break
		}
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// PastedName is the name given to a stage created from s.
func (s *StageSnapshot) PastedName() string {
	return s.Name + CopySuffix
}

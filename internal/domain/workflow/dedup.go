package workflow

import (
	"slices"
	"strings"
)

// NormalizeTitle is the comparison form of a task title: surrounding
// whitespace trimmed and lowercased.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

type dedupKey struct {
	stageKey string
	title    string
}

// Dedup groups tasks by stage key and normalized title and keeps the
// earliest created member of each group (ties go to the smaller id).
// Survivors keep their input order. Dropped tasks are returned separately
// so the caller can delete them from storage.
func Dedup(tasks []Task) (kept, dropped []Task) {
	winner := make(map[dedupKey]int, len(tasks))
	for i, t := range tasks {
		k := dedupKey{stageKey: t.StageKey, title: NormalizeTitle(t.Title)}
		cur, ok := winner[k]
		if !ok || older(t, tasks[cur]) {
			winner[k] = i
		}
	}
	if len(winner) == len(tasks) {
		return slices.Clone(tasks), nil
	}

	kept = make([]Task, 0, len(winner))
	for i, t := range tasks {
		k := dedupKey{stageKey: t.StageKey, title: NormalizeTitle(t.Title)}
		if winner[k] == i {
			kept = append(kept, t)
		} else {
			dropped = append(dropped, t)
		}
	}
	return kept, dropped
}

func older(a, b Task) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

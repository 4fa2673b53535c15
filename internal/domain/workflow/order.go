package workflow

import (
	"fmt"
	"slices"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
)

// Reordering maps each id to its new sortOrder.
type Reordering map[string]int

// PositionalOrder assigns each id its index in ids. It rejects empty and
// repeated ids.
func PositionalOrder(ids []string) (Reordering, error) {
	order := make(Reordering, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, domain.NewValidationError("ids", fmt.Sprintf("empty id at position %d", i))
		}
		if _, dup := order[id]; dup {
			return nil, domain.NewValidationError("ids", fmt.Sprintf("duplicate id %q", id))
		}
		order[id] = i
	}
	return order, nil
}

// CompleteOrder returns listed followed by the ids of current it leaves
// out, in their current order, so that every row of the scope gets a
// position and the result stays dense.
func CompleteOrder(listed, current []string) []string {
	out := slices.Clone(listed)
	for _, id := range current {
		if !slices.Contains(listed, id) {
			out = append(out, id)
		}
	}
	return out
}

package workflow

import "time"

var defaultStages = []struct {
	key, name, icon string
}{
	{key: "contact", name: "Client contact", icon: "Phone"},
	{key: "info", name: "Information file", icon: "FolderOpen"},
	{key: "submission", name: "Submission", icon: "Send"},
	{key: "control", name: "Spatial review", icon: "MapPin"},
}

// DefaultStages returns the starter pipeline seeded for an owner with no
// stages.
func DefaultStages(ownerID string, now time.Time) []Stage {
	out := make([]Stage, 0, len(defaultStages))
	for i, d := range defaultStages {
		out = append(out, Stage{
			ID:        NewID(),
			OwnerID:   ownerID,
			StageKey:  d.key,
			Name:      d.name,
			Icon:      d.icon,
			SortOrder: i,
			Timer:     Timer{DisplayStyle: DisplayStyleFirst},
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
		})
	}
	return out
}

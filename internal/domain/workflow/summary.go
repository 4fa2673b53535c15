package workflow

// Summary is the progress digest of one owner's pipeline.
type Summary struct {
	TotalStages     int
	CompletedStages int
	TotalTasks      int
	CompletedTasks  int
	// CurrentStage is nil when the owner has no stages.
	CurrentStage *Stage
}

// AllComplete reports whether every stage has all of its tasks done.
func (s Summary) AllComplete() bool {
	return s.TotalStages > 0 && s.CompletedStages == s.TotalStages
}

// Summarize computes the digest of an ordered view. A stage counts as
// complete when it has at least one task and all of them are done. The
// current stage is the first one that is not complete, or the last stage
// when all are.
func Summarize(views []StageView) Summary {
	sum := Summary{TotalStages: len(views)}
	for i := range views {
		done := 0
		for _, t := range views[i].Tasks {
			if t.Completed {
				done++
			}
		}
		sum.TotalTasks += len(views[i].Tasks)
		sum.CompletedTasks += done

		complete := len(views[i].Tasks) > 0 && done == len(views[i].Tasks)
		if complete {
			sum.CompletedStages++
		} else if sum.CurrentStage == nil {
			st := views[i].Stage
			sum.CurrentStage = &st
		}
	}
	if sum.CurrentStage == nil && len(views) > 0 {
		st := views[len(views)-1].Stage
		sum.CurrentStage = &st
	}
	return sum
}

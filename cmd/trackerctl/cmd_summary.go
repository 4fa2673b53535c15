package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

// summaryView is the JSON form of an owner summary.
type summaryView struct {
	OwnerID         string `json:"owner_id"`
	TotalStages     int    `json:"total_stages"`
	CompletedStages int    `json:"completed_stages"`
	TotalTasks      int    `json:"total_tasks"`
	CompletedTasks  int    `json:"completed_tasks"`
	AllComplete     bool   `json:"all_complete"`
	CurrentStage    string `json:"current_stage,omitempty"`
}

func newSummaryView(ownerID string, s workflow.Summary) summaryView {
	v := summaryView{
		OwnerID:         ownerID,
		TotalStages:     s.TotalStages,
		CompletedStages: s.CompletedStages,
		TotalTasks:      s.TotalTasks,
		CompletedTasks:  s.CompletedTasks,
		AllComplete:     s.AllComplete(),
	}
	if s.CurrentStage != nil {
		v.CurrentStage = s.CurrentStage.Name
	}
	return v
}

func newSummaryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <owner-id>",
		Short: "Print the progress of one owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			tr, err := s.trackers.Owner(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load owner %s: %w", args[0], err)
			}
			v := newSummaryView(args[0], tr.Summary())

			out := cmd.OutOrStdout()
			if c.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}

			fmt.Fprintf(out, "Owner:   %s\n", v.OwnerID)
			fmt.Fprintf(out, "Stages:  %d/%d complete\n", v.CompletedStages, v.TotalStages)
			fmt.Fprintf(out, "Tasks:   %d/%d complete\n", v.CompletedTasks, v.TotalTasks)
			switch {
			case v.AllComplete:
				fmt.Fprintln(out, "Current: all stages complete")
			case v.CurrentStage != "":
				fmt.Fprintf(out, "Current: %s\n", v.CurrentStage)
			}
			return nil
		},
	}
}

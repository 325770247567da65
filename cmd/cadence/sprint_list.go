package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sprintListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sprints for an organization",
	Args:  cobra.NoArgs,
	RunE:  runSprintList,
}

func runSprintList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := resolveStore()
	if err != nil {
		return err
	}
	defer db.Close()

	sprints, err := db.ListSprints(ctx, sprintOrgID)
	if err != nil {
		return fmt.Errorf("list sprints: %w", err)
	}

	if sprintJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"sprints": sprints,
			"total":   len(sprints),
		})
	}

	if len(sprints) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sprints found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tSTART\tEND\tSTATE\tVELOCITY\tPLANNED")
	for _, s := range sprints {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.Name,
			s.StartDate.Format("2006-01-02"),
			s.EndDate.Format("2006-01-02"),
			formatSprintState(s),
			formatVelocity(s.Velocity),
			formatVelocity(s.PlannedVelocity),
		)
	}
	w.Flush()

	return nil
}

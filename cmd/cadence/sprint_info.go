package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/cadence/internal/analytics"
)

var sprintInfoCmd = &cobra.Command{
	Use:   "info <sprint-id>",
	Short: "Show detailed information about a sprint",
	Args:  cobra.ExactArgs(1),
	RunE:  runSprintInfo,
}

func runSprintInfo(cmd *cobra.Command, args []string) error {
	sprintID := args[0]
	ctx := context.Background()

	db, err := resolveStore()
	if err != nil {
		return err
	}
	defer db.Close()

	sprint, err := db.GetSprint(ctx, sprintOrgID, sprintID)
	if err != nil {
		return err
	}

	tasks, err := db.ListTasksBySprint(ctx, sprintOrgID, sprintID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	stats := analytics.TaskStats(tasks)

	out := cmd.OutOrStdout()

	if sprintJSONOutput {
		return printJSON(out, map[string]any{
			"sprint": sprint,
			"stats":  stats,
		})
	}

	fmt.Fprintf(out, "Sprint:       %s\n", sprint.ID)
	fmt.Fprintf(out, "Name:         %s\n", sprint.Name)
	if sprint.Goal != nil {
		fmt.Fprintf(out, "Goal:         %s\n", *sprint.Goal)
	}
	fmt.Fprintf(out, "Start:        %s\n", sprint.StartDate.Format("2006-01-02"))
	fmt.Fprintf(out, "End:          %s\n", sprint.EndDate.Format("2006-01-02"))
	fmt.Fprintf(out, "State:        %s\n", formatSprintState(*sprint))
	fmt.Fprintf(out, "Velocity:     %s\n", formatVelocity(sprint.Velocity))
	fmt.Fprintf(out, "Planned:      %s\n", formatVelocity(sprint.PlannedVelocity))
	fmt.Fprintf(out, "Tasks:        %d (%d completed, %.1f%%)\n",
		stats.TotalTasks, stats.CompletedTasks, stats.CompletionPercentage)
	fmt.Fprintf(out, "Story points: %d (%d completed, %.1f%%)\n",
		stats.TotalStoryPoints, stats.CompletedStoryPoints, stats.StoryPointsPercentage)

	return nil
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/cadence/internal/analytics"
)

var completeForce bool

var sprintCompleteCmd = &cobra.Command{
	Use:   "complete <sprint-id>",
	Short: "Complete a sprint and freeze its velocity",
	Long:  "Mark a sprint as completed, computing its velocity from done and cancelled tasks. Completion is permanent. Requires --force or interactive confirmation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSprintComplete,
}

func init() {
	sprintCompleteCmd.Flags().BoolVar(&completeForce, "force", false,
		"Skip confirmation prompt")
}

func runSprintComplete(cmd *cobra.Command, args []string) error {
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

	// Interactive confirmation unless --force
	if !completeForce {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "Completing sprint %q is permanent and freezes its velocity.\n", sprint.Name)
		fmt.Fprint(errOut, "Type the sprint ID to confirm: ")

		reader := bufio.NewReader(cmd.InOrStdin())
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}

		if strings.TrimSpace(input) != sprintID {
			fmt.Fprintln(errOut, "Aborted. Sprint ID did not match.")
			return nil
		}
	}

	velocity, err := analytics.Complete(sprint, tasks)
	if err != nil {
		return err
	}

	if err := db.CompleteSprint(ctx, sprintOrgID, sprintID, velocity); err != nil {
		return err
	}

	if sprintJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"id":        sprintID,
			"completed": true,
			"velocity":  velocity,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Completed sprint %q with velocity %.1f\n", sprint.Name, velocity)
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/cadence/internal/config"
	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
)

var (
	sprintDBOverride string
	sprintOrgID      string
	sprintJSONOutput bool
)

var sprintCmd = &cobra.Command{
	Use:   "sprint",
	Short: "Manage sprints",
	Long:  "List, inspect, and complete sprints without running the server.",
}

func init() {
	sprintCmd.PersistentFlags().StringVar(&sprintDBOverride, "db", "",
		"Database path (overrides config and CADENCE_DB_PATH)")
	sprintCmd.PersistentFlags().StringVar(&sprintOrgID, "org", "",
		"Organization ID to operate on (required)")
	sprintCmd.PersistentFlags().BoolVar(&sprintJSONOutput, "json", false,
		"Output in JSON format")

	sprintCmd.AddCommand(sprintListCmd)
	sprintCmd.AddCommand(sprintInfoCmd)
	sprintCmd.AddCommand(sprintCompleteCmd)
}

// resolveStore opens the SQLite store from config with optional --db override.
func resolveStore() (*store.SQLiteStore, error) {
	if sprintOrgID == "" {
		return nil, fmt.Errorf("--org is required")
	}

	dbPath := sprintDBOverride
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		dbPath = cfg.Database.Path
	}

	return store.NewSQLiteStore(dbPath)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// formatSprintState renders the sprint state column, colored for terminals.
func formatSprintState(s types.Sprint) string {
	if s.IsCompleted {
		return color.GreenString("completed")
	}
	return color.YellowString("open")
}

// formatVelocity renders a nullable velocity.
func formatVelocity(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

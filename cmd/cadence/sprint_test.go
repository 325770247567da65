package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
)

const testOrgID = "org-cli-test"

// executeSprintCmd executes a sprint subcommand with captured output.
// Uses --db to isolate filesystem state per test.
func executeSprintCmd(t *testing.T, dbPath string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	// Reset package-level flag variables to their defaults.
	// Cobra parses into these variables, so stale values from previous tests
	// would leak if not reset.
	sprintDBOverride = ""
	sprintOrgID = ""
	sprintJSONOutput = false
	completeForce = false

	fullArgs := append([]string{"sprint"}, args...)
	fullArgs = append(fullArgs, "--db", dbPath, "--org", testOrgID)

	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetArgs(fullArgs)

	err = rootCmd.Execute()

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetArgs(nil)

	return outBuf.String(), errBuf.String(), err
}

// seedCLISprint creates a sprint (and optionally a done task) in the test database.
func seedCLISprint(t *testing.T, dbPath string, withTask bool) *types.Sprint {
	t.Helper()

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	sprint, err := db.CreateSprint(ctx, types.NewSprint{
		Name:           "Iteration 4",
		StartDate:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		OrganizationID: testOrgID,
	})
	if err != nil {
		t.Fatalf("seeding sprint: %v", err)
	}

	if withTask {
		points := 8
		task, err := db.CreateTask(ctx, types.NewTask{
			Title:          "Ship analytics",
			StoryPoints:    &points,
			SprintID:       &sprint.ID,
			OrganizationID: testOrgID,
		})
		if err != nil {
			t.Fatalf("seeding task: %v", err)
		}
		if _, err := db.UpdateTaskStatus(ctx, testOrgID, task.ID, types.StatusDone); err != nil {
			t.Fatalf("updating task status: %v", err)
		}
	}

	return sprint
}

func TestSprintList_Empty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cadence.db")
	seedDB, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	seedDB.Close()

	stdout, _, err := executeSprintCmd(t, dbPath, "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "No sprints found.") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestSprintList_ShowsSeededSprint(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cadence.db")
	seedCLISprint(t, dbPath, false)

	stdout, _, err := executeSprintCmd(t, dbPath, "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "Iteration 4") {
		t.Errorf("stdout = %q, want sprint name", stdout)
	}
	if !strings.Contains(stdout, "open") {
		t.Errorf("stdout = %q, want open state", stdout)
	}
}

func TestSprintList_JSONOutput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cadence.db")
	seedCLISprint(t, dbPath, false)

	stdout, _, err := executeSprintCmd(t, dbPath, "list", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Sprints []types.Sprint `json:"sprints"`
		Total   int            `json:"total"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON output %q: %v", stdout, err)
	}
	if resp.Total != 1 || len(resp.Sprints) != 1 {
		t.Errorf("total = %d, sprints = %d, want 1", resp.Total, len(resp.Sprints))
	}
}

func TestSprintInfo_ShowsTaskStats(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cadence.db")
	sprint := seedCLISprint(t, dbPath, true)

	stdout, _, err := executeSprintCmd(t, dbPath, "info", sprint.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "Iteration 4") {
		t.Errorf("stdout = %q, want sprint name", stdout)
	}
	if !strings.Contains(stdout, "1 (1 completed, 100.0%)") {
		t.Errorf("stdout = %q, want task stats", stdout)
	}
}

func TestSprintComplete_FreezesVelocity(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cadence.db")
	sprint := seedCLISprint(t, dbPath, true)

	stdout, _, err := executeSprintCmd(t, dbPath, "complete", sprint.ID, "--force")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "velocity 8.0") {
		t.Errorf("stdout = %q, want velocity 8.0", stdout)
	}

	// Second completion must fail.
	_, _, err = executeSprintCmd(t, dbPath, "complete", sprint.ID, "--force")
	if err == nil {
		t.Fatal("second completion should error")
	}
}

func TestSprint_RequiresOrgFlag(t *testing.T) {
	sprintDBOverride = ""
	sprintOrgID = ""
	sprintJSONOutput = false

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"sprint", "list", "--db", filepath.Join(t.TempDir(), "x.db")})

	err := rootCmd.Execute()

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetArgs(nil)

	if err == nil || !strings.Contains(err.Error(), "--org is required") {
		t.Errorf("err = %v, want --org is required", err)
	}
}

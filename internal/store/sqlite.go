package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite-backed sprint and task database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sprintColumns = `id, name, goal, start_date, end_date, organization_id,
       velocity, planned_velocity, is_completed, created_at, updated_at`

const taskColumns = `id, title, status, story_points, estimated_hours,
       sprint_id, organization_id, created_at, updated_at`

// CreateSprint inserts a new, not-yet-completed sprint.
func (s *SQLiteStore) CreateSprint(ctx context.Context, in types.NewSprint) (*types.Sprint, error) {
	now := time.Now().UTC()
	sprint := types.Sprint{
		ID:              ulid.Make().String(),
		Name:            in.Name,
		Goal:            in.Goal,
		StartDate:       in.StartDate.UTC(),
		EndDate:         in.EndDate.UTC(),
		OrganizationID:  in.OrganizationID,
		PlannedVelocity: in.PlannedVelocity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sprints (id, name, goal, start_date, end_date, organization_id,
		                     velocity, planned_velocity, is_completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, 0, ?, ?)
	`, sprint.ID, sprint.Name, nullString(sprint.Goal),
		sprint.StartDate.Format(time.RFC3339), sprint.EndDate.Format(time.RFC3339),
		sprint.OrganizationID, nullFloat(sprint.PlannedVelocity),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert sprint: %w", err)
	}

	return &sprint, nil
}

// GetSprint retrieves a sprint by ID within an organization.
func (s *SQLiteStore) GetSprint(ctx context.Context, orgID, id string) (*types.Sprint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sprintColumns+`
		FROM sprints
		WHERE id = ? AND organization_id = ?
	`, id, orgID)

	sprint, err := scanSprint(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan sprint: %w", err)
	}

	return sprint, nil
}

// ListSprints returns an organization's sprints, newest start date first.
func (s *SQLiteStore) ListSprints(ctx context.Context, orgID string) ([]types.Sprint, error) {
	return s.querySprints(ctx, `
		SELECT `+sprintColumns+`
		FROM sprints
		WHERE organization_id = ?
		ORDER BY start_date DESC
	`, orgID)
}

// ListCompletedSprints returns completed sprints ordered by end date
// descending, the order the velocity trend reports them in.
func (s *SQLiteStore) ListCompletedSprints(ctx context.Context, orgID string) ([]types.Sprint, error) {
	return s.querySprints(ctx, `
		SELECT `+sprintColumns+`
		FROM sprints
		WHERE organization_id = ? AND is_completed = 1
		ORDER BY end_date DESC
	`, orgID)
}

func (s *SQLiteStore) querySprints(ctx context.Context, query string, args ...any) ([]types.Sprint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sprints: %w", err)
	}
	defer rows.Close()

	var sprints []types.Sprint
	for rows.Next() {
		sprint, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, *sprint)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sprints: %w", err)
	}

	return sprints, nil
}

// UpdateSprint persists the mutable sprint fields (name, goal, dates).
func (s *SQLiteStore) UpdateSprint(ctx context.Context, sprint *types.Sprint) error {
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE sprints
		SET name = ?, goal = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, sprint.Name, nullString(sprint.Goal),
		sprint.StartDate.UTC().Format(time.RFC3339), sprint.EndDate.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339), sprint.ID, sprint.OrganizationID)
	if err != nil {
		return fmt.Errorf("update sprint: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	sprint.UpdatedAt = now
	return nil
}

// DeleteSprint removes a sprint. Sprints with assigned tasks cannot be
// deleted; tasks must be unassigned first.
func (s *SQLiteStore) DeleteSprint(ctx context.Context, orgID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var taskCount int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE sprint_id = ?", id).Scan(&taskCount)
	if err != nil {
		return fmt.Errorf("count sprint tasks: %w", err)
	}
	if taskCount > 0 {
		return ErrSprintHasTasks
	}

	result, err := tx.ExecContext(ctx,
		"DELETE FROM sprints WHERE id = ? AND organization_id = ?", id, orgID)
	if err != nil {
		return fmt.Errorf("delete sprint: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// CompleteSprint freezes the computed velocity and marks the sprint
// completed. The is_completed guard in the WHERE clause makes the
// transition single-writer: a concurrent second completion affects zero
// rows and is reported as ErrSprintCompleted.
func (s *SQLiteStore) CompleteSprint(ctx context.Context, orgID, id string, velocity float64) error {
	return s.guardedSprintUpdate(ctx, orgID, id, `
		UPDATE sprints
		SET is_completed = 1, velocity = ?, updated_at = ?
		WHERE id = ? AND organization_id = ? AND is_completed = 0
	`, velocity)
}

// UpdatePlannedVelocity sets the planned velocity on an open sprint.
func (s *SQLiteStore) UpdatePlannedVelocity(ctx context.Context, orgID, id string, velocity float64) error {
	return s.guardedSprintUpdate(ctx, orgID, id, `
		UPDATE sprints
		SET planned_velocity = ?, updated_at = ?
		WHERE id = ? AND organization_id = ? AND is_completed = 0
	`, velocity)
}

// guardedSprintUpdate runs an is_completed-guarded update and
// disambiguates a zero-row result into ErrSprintCompleted or ErrNotFound.
func (s *SQLiteStore) guardedSprintUpdate(ctx context.Context, orgID, id, query string, value float64) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx, query, value, now, id, orgID)
	if err != nil {
		return fmt.Errorf("update sprint: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var completed bool
	err = s.db.QueryRowContext(ctx,
		"SELECT is_completed FROM sprints WHERE id = ? AND organization_id = ?",
		id, orgID).Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check sprint state: %w", err)
	}
	if completed {
		return ErrSprintCompleted
	}
	return ErrNotFound
}

// CreateTask inserts a new task in TODO status.
func (s *SQLiteStore) CreateTask(ctx context.Context, in types.NewTask) (*types.Task, error) {
	now := time.Now().UTC()
	t := types.Task{
		ID:             ulid.Make().String(),
		Title:          in.Title,
		Status:         types.StatusTodo,
		StoryPoints:    in.StoryPoints,
		EstimatedHours: in.EstimatedHours,
		SprintID:       in.SprintID,
		OrganizationID: in.OrganizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, status, story_points, estimated_hours,
		                   sprint_id, organization_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Title, string(t.Status), nullInt(t.StoryPoints), nullInt(t.EstimatedHours),
		nullString(t.SprintID), t.OrganizationID,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return &t, nil
}

// GetTask retrieves a task by ID within an organization.
func (s *SQLiteStore) GetTask(ctx context.Context, orgID, id string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = ? AND organization_id = ?
	`, id, orgID)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	return t, nil
}

// ListTasksBySprint returns all tasks assigned to a sprint.
func (s *SQLiteStore) ListTasksBySprint(ctx context.Context, orgID, sprintID string) ([]types.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE sprint_id = ? AND organization_id = ?
		ORDER BY created_at ASC
	`, sprintID, orgID)
	if err != nil {
		return nil, fmt.Errorf("query sprint tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

// UpdateTaskStatus transitions a task to the given status and returns
// the updated row.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, orgID, id string, status types.Status) (*types.Task, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, string(status), now, id, orgID)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.GetTask(ctx, orgID, id)
}

// AssignTasksToSprint attaches the given tasks to a sprint. Task IDs that
// do not exist in the organization are skipped; the count of assigned
// tasks is returned.
func (s *SQLiteStore) AssignTasksToSprint(ctx context.Context, orgID, sprintID string, taskIDs []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE tasks
		SET sprint_id = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	assigned := 0

	for _, taskID := range taskIDs {
		result, err := stmt.ExecContext(ctx, sprintID, now, taskID, orgID)
		if err != nil {
			return 0, fmt.Errorf("assign task %s: %w", taskID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("get rows affected: %w", err)
		}
		assigned += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return assigned, nil
}

// RemoveTaskFromSprint detaches a task from a sprint. The task must
// currently belong to that sprint.
func (s *SQLiteStore) RemoveTaskFromSprint(ctx context.Context, orgID, sprintID, taskID string) error {
	t, err := s.GetTask(ctx, orgID, taskID)
	if err != nil {
		return err
	}
	if t.SprintID == nil || *t.SprintID != sprintID {
		return ErrTaskNotInSprint
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks
		SET sprint_id = NULL, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, time.Now().UTC().Format(time.RFC3339), taskID, orgID)
	if err != nil {
		return fmt.Errorf("remove task from sprint: %w", err)
	}

	return nil
}

// GetStats returns aggregate store statistics.
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	var stats types.StoreStats

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sprints").Scan(&stats.SprintCount); err != nil {
		return nil, fmt.Errorf("count sprints: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&stats.TaskCount); err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	return &stats, nil
}

// scanSprint scans a row into a Sprint, handling NULL columns and
// timestamp parsing.
func scanSprint(scanner interface{ Scan(...any) error }) (*types.Sprint, error) {
	var sprint types.Sprint
	var goal sql.NullString
	var velocity, plannedVelocity sql.NullFloat64
	var startDate, endDate, createdAt, updatedAt string

	err := scanner.Scan(
		&sprint.ID,
		&sprint.Name,
		&goal,
		&startDate,
		&endDate,
		&sprint.OrganizationID,
		&velocity,
		&plannedVelocity,
		&sprint.IsCompleted,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if goal.Valid {
		sprint.Goal = &goal.String
	}
	if velocity.Valid {
		sprint.Velocity = &velocity.Float64
	}
	if plannedVelocity.Valid {
		sprint.PlannedVelocity = &plannedVelocity.Float64
	}

	if t, err := time.Parse(time.RFC3339, startDate); err == nil {
		sprint.StartDate = t
	}
	if t, err := time.Parse(time.RFC3339, endDate); err == nil {
		sprint.EndDate = t
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		sprint.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		sprint.UpdatedAt = t
	}

	return &sprint, nil
}

// scanTask scans a row into a Task.
func scanTask(scanner interface{ Scan(...any) error }) (*types.Task, error) {
	var t types.Task
	var status string
	var storyPoints, estimatedHours sql.NullInt64
	var sprintID sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&t.ID,
		&t.Title,
		&status,
		&storyPoints,
		&estimatedHours,
		&sprintID,
		&t.OrganizationID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = types.Status(status)
	if storyPoints.Valid {
		v := int(storyPoints.Int64)
		t.StoryPoints = &v
	}
	if estimatedHours.Valid {
		v := int(estimatedHours.Int64)
		t.EstimatedHours = &v
	}
	if sprintID.Valid {
		t.SprintID = &sprintID.String
	}

	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		t.UpdatedAt = ts
	}

	return &t, nil
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

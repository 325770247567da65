package store

import (
	"context"

	"github.com/hyperengineering/cadence/internal/types"
)

// Store defines the interface contract for sprint and task persistence.
// All sprint and task lookups are scoped to one organization; a record
// belonging to another organization is reported as ErrNotFound.
type Store interface {
	CreateSprint(ctx context.Context, in types.NewSprint) (*types.Sprint, error)
	GetSprint(ctx context.Context, orgID, id string) (*types.Sprint, error)
	ListSprints(ctx context.Context, orgID string) ([]types.Sprint, error)
	ListCompletedSprints(ctx context.Context, orgID string) ([]types.Sprint, error)
	UpdateSprint(ctx context.Context, sprint *types.Sprint) error
	DeleteSprint(ctx context.Context, orgID, id string) error
	CompleteSprint(ctx context.Context, orgID, id string, velocity float64) error
	UpdatePlannedVelocity(ctx context.Context, orgID, id string, velocity float64) error

	CreateTask(ctx context.Context, in types.NewTask) (*types.Task, error)
	GetTask(ctx context.Context, orgID, id string) (*types.Task, error)
	ListTasksBySprint(ctx context.Context, orgID, sprintID string) ([]types.Task, error)
	UpdateTaskStatus(ctx context.Context, orgID, id string, status types.Status) (*types.Task, error)
	AssignTasksToSprint(ctx context.Context, orgID, sprintID string, taskIDs []string) (int, error)
	RemoveTaskFromSprint(ctx context.Context, orgID, sprintID, taskID string) error

	GetStats(ctx context.Context) (*types.StoreStats, error)
	Close() error
}

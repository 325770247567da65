package analytics

import (
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

// Complete transitions a sprint to its terminal completed state and
// freezes its velocity from the supplied task set. The transition is
// one-way: calling it on an already-completed sprint returns
// ErrSprintCompleted and leaves the frozen velocity untouched. The
// mutation is in-memory; persisting it, and guarding against a
// concurrent double-completion, is the caller's job.
func Complete(sprint *types.Sprint, tasks []types.Task) (float64, error) {
	if sprint.IsCompleted {
		return 0, ErrSprintCompleted
	}

	v := SprintVelocity(tasks)
	sprint.IsCompleted = true
	sprint.Velocity = &v
	return v, nil
}

// SetPlannedVelocity updates the planned velocity on an open sprint.
// Completed sprints and negative values are rejected.
func SetPlannedVelocity(sprint *types.Sprint, v float64) error {
	if sprint.IsCompleted {
		return ErrSprintCompleted
	}
	if v < 0 {
		return ErrNegativePlannedVelocity
	}
	sprint.PlannedVelocity = &v
	return nil
}

// ValidateDateRange enforces the creation/update invariant that a sprint
// ends strictly after it starts.
func ValidateDateRange(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidDateRange
	}
	return nil
}

// CurrentSprint returns the first sprint whose date range contains now,
// or nil when none does. The first-match tie-break is deliberate; no
// current sprint is a reportable state, not an error.
func CurrentSprint(sprints []types.Sprint, now time.Time) *types.Sprint {
	for i := range sprints {
		s := &sprints[i]
		if !s.StartDate.After(now) && !s.EndDate.Before(now) {
			return s
		}
	}
	return nil
}

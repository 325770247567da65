// Package analytics turns raw sprint and task state into burndown curves,
// velocity estimates, and completion projections. All computations are
// pure and request-scoped: callers materialize the sprint and its tasks
// from the store first, then hand them to these functions. Nothing here
// performs I/O or caches results.
package analytics

import (
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

// WorkUnitValue resolves a task's contribution to sprint capacity:
// story points when set, estimated hours otherwise, zero when neither.
// Every remaining-work and total-work computation goes through this
// function so burndown and velocity numbers stay comparable.
func WorkUnitValue(t types.Task) float64 {
	if t.StoryPoints != nil {
		return float64(*t.StoryPoints)
	}
	if t.EstimatedHours != nil {
		return float64(*t.EstimatedHours)
	}
	return 0
}

// Ledger is a read-only view over the tasks assigned to one sprint.
// A zero-task ledger yields zero-valued aggregates, never an error.
type Ledger struct {
	tasks []types.Task
}

// NewLedger creates a ledger over the given task set.
func NewLedger(tasks []types.Task) *Ledger {
	return &Ledger{tasks: tasks}
}

// RemainingWork sums work units over tasks not yet in a terminal status.
//
// The asOf date is accepted for the burndown walk but the computation
// reflects each task's current status, not its status as it was on that
// date. Historical points in a burndown series are therefore
// current-state snapshots. Reconstructing true historical state would
// require a status-change event log, which the system does not keep.
func (l *Ledger) RemainingWork(asOf time.Time) float64 {
	_ = asOf

	var remaining float64
	for _, t := range l.tasks {
		if !t.Status.Terminal() {
			remaining += WorkUnitValue(t)
		}
	}
	return remaining
}

// TotalWork sums work units over every task assigned to the sprint,
// regardless of status.
func (l *Ledger) TotalWork() float64 {
	var total float64
	for _, t := range l.tasks {
		total += WorkUnitValue(t)
	}
	return total
}

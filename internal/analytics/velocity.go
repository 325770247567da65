package analytics

import (
	"math"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

// CompletedWorkTotals sums both unit systems independently over tasks in
// a terminal status. Unlike SprintVelocity there is no preference between
// the two: daily velocity reports story points and hours side by side.
func CompletedWorkTotals(tasks []types.Task) types.CompletedWork {
	var work types.CompletedWork
	for _, t := range tasks {
		if !t.Status.Terminal() {
			continue
		}
		if t.StoryPoints != nil {
			work.StoryPoints += *t.StoryPoints
		}
		if t.EstimatedHours != nil {
			work.Hours += *t.EstimatedHours
		}
	}
	return work
}

// SprintVelocity computes the velocity frozen at sprint completion: the
// story-point total of terminal-status tasks when it is positive,
// otherwise the estimated-hours total, otherwise zero. This sprint-level
// either/or preference is distinct from the per-task fallback in
// WorkUnitValue; both rules are load-bearing.
func SprintVelocity(tasks []types.Task) float64 {
	work := CompletedWorkTotals(tasks)
	if work.StoryPoints > 0 {
		return float64(work.StoryPoints)
	}
	if work.Hours > 0 {
		return float64(work.Hours)
	}
	return 0
}

// SprintVelocityMetrics builds the per-sprint velocity report: completed
// work in both unit systems and the per-day rates over elapsed sprint
// days. Zero or negative elapsed days yields zero rates, never a
// division error.
func SprintVelocityMetrics(sprint types.Sprint, tasks []types.Task, now time.Time) types.SprintVelocityResponse {
	work := CompletedWorkTotals(tasks)
	daysElapsed := floorDays(now.Sub(sprint.StartDate)) + 1

	var daily types.DailyVelocity
	if daysElapsed > 0 {
		daily.StoryPoints = float64(work.StoryPoints) / float64(daysElapsed)
		daily.Hours = float64(work.Hours) / float64(daysElapsed)
	}

	return types.SprintVelocityResponse{
		CompletedWork: work,
		DailyVelocity: daily,
		DaysElapsed:   daysElapsed,
	}
}

// OrganizationVelocity aggregates the velocity trend across an
// organization's completed sprints. Callers supply the sprints ordered by
// end date descending; the order is preserved in the trend. Sprints with
// a null velocity count toward completed_sprints but are excluded from
// the trend and the average. An empty set yields an average of zero.
func OrganizationVelocity(completed []types.Sprint) types.OrganizationVelocityResponse {
	var trend []types.VelocityRecord
	var sum float64

	for _, s := range completed {
		if s.Velocity == nil {
			continue
		}
		sum += *s.Velocity
		trend = append(trend, types.VelocityRecord{
			SprintID:        s.ID,
			SprintName:      s.Name,
			EndDate:         s.EndDate,
			Velocity:        *s.Velocity,
			PlannedVelocity: s.PlannedVelocity,
		})
	}

	var avg float64
	if len(trend) > 0 {
		avg = sum / float64(len(trend))
	}

	return types.OrganizationVelocityResponse{
		AverageVelocity:  avg,
		CompletedSprints: len(completed),
		VelocityTrend:    trend,
	}
}

// TaskStats summarizes a sprint's task list: counts and story-point
// totals with completion percentages rounded to one decimal place. Only
// DONE tasks count as completed here; cancelled work is finished for
// velocity purposes but not delivered.
func TaskStats(tasks []types.Task) types.SprintTaskStats {
	stats := types.SprintTaskStats{TotalTasks: len(tasks)}

	for _, t := range tasks {
		if t.StoryPoints != nil {
			stats.TotalStoryPoints += *t.StoryPoints
		}
		if t.Status == types.StatusDone {
			stats.CompletedTasks++
			if t.StoryPoints != nil {
				stats.CompletedStoryPoints += *t.StoryPoints
			}
		}
	}

	if stats.TotalTasks > 0 {
		stats.CompletionPercentage = round1(float64(stats.CompletedTasks) / float64(stats.TotalTasks) * 100)
	}
	if stats.TotalStoryPoints > 0 {
		stats.StoryPointsPercentage = round1(float64(stats.CompletedStoryPoints) / float64(stats.TotalStoryPoints) * 100)
	}

	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

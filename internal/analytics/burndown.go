package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

// Burndown produces the merged actual and ideal remaining-work series for
// the sprint's full date range, one point per calendar day inclusive,
// plus summary statistics. The now argument anchors days_remaining.
func Burndown(sprint types.Sprint, tasks []types.Task, now time.Time) types.BurndownResponse {
	ledger := NewLedger(tasks)
	total := ledger.TotalWork()

	start := truncateToDay(sprint.StartDate)
	end := truncateToDay(sprint.EndDate)

	days := daysBetween(start, end) + 1
	var dailyReduction float64
	if days > 0 {
		dailyReduction = total / float64(days)
	}

	var points []types.BurndownPoint

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		points = append(points, types.BurndownPoint{
			Date:          d,
			RemainingWork: ledger.RemainingWork(d),
			IsIdeal:       false,
		})
	}

	remaining := total
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		points = append(points, types.BurndownPoint{
			Date:          d,
			RemainingWork: remaining,
			IsIdeal:       true,
		})
		remaining -= dailyReduction
	}

	// Display convention consumers depend on: ascending by date, and on
	// shared dates the actual point sorts before the ideal point.
	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.Before(points[j].Date)
		}
		return !points[i].IsIdeal && points[j].IsIdeal
	})

	completed := total - ledger.RemainingWork(end)
	var pct float64
	if total > 0 {
		pct = completed / total * 100
	}

	return types.BurndownResponse{
		Points: points,
		Statistics: types.BurndownStatistics{
			TotalWork:            total,
			CompletedWork:        completed,
			CompletionPercentage: pct,
			DaysRemaining:        floorDays(sprint.EndDate.Sub(now)),
		},
	}
}

// truncateToDay normalizes a timestamp to midnight UTC so the burndown
// walk steps over calendar days.
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns whole calendar days from a to b for day-truncated
// inputs.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// floorDays converts a duration to whole days, rounding toward negative
// infinity so overdue spans come out negative rather than zero.
func floorDays(d time.Duration) int {
	return int(math.Floor(d.Hours() / 24))
}

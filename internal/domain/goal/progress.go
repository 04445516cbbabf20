package goal

import (
	"time"

	"github.com/grithabit/grithabit/internal/domain/activity"
)

// Progress is the derived state of a goal at a point in time.
type Progress struct {
	Goal        *Goal
	PeriodStart time.Time
	Count       int
	Percentage  int // 0..100
	Reached     bool
	SubGoals    []SubGoalProgress
}

// SubGoalProgress is the derived state of one sub-goal.
type SubGoalProgress struct {
	SubGoal    SubGoal
	Count      int
	Percentage int
	Reached    bool
}

// Percent returns min(count/target*100, 100), rounded down.
func Percent(count, target int) int {
	if target <= 0 {
		return 0
	}
	p := count * 100 / target
	if p > 100 {
		return 100
	}
	return p
}

// CalculateProgress derives a goal's progress from the user's activities.
// The goal counts same-category activities with timestamp at or after the
// start of the current period. Sub-goals count activities referencing
// them, regardless of period.
func CalculateProgress(g *Goal, activities []*activity.Activity, now time.Time, loc *time.Location) Progress {
	start := g.Period.Start(now, loc)

	count := 0
	perSubGoal := make(map[string]int, len(g.SubGoals))
	for _, a := range activities {
		if a.Category == g.Category && !a.Timestamp.Before(start) {
			count++
		}
		if a.SubGoalID != "" {
			perSubGoal[a.SubGoalID]++
		}
	}

	subs := make([]SubGoalProgress, 0, len(g.SubGoals))
	for _, sg := range g.SubGoals {
		c := perSubGoal[sg.ID]
		subs = append(subs, SubGoalProgress{
			SubGoal:    sg,
			Count:      c,
			Percentage: Percent(c, sg.TargetCount),
			Reached:    sg.Completed || c >= sg.TargetCount,
		})
	}

	return Progress{
		Goal:        g,
		PeriodStart: start,
		Count:       count,
		Percentage:  Percent(count, g.TargetCount),
		Reached:     count >= g.TargetCount,
		SubGoals:    subs,
	}
}

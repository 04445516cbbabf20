package gamification

import (
	"sort"
	"time"

	"github.com/grithabit/grithabit/pkg/timeutil"
)

// Streak is a pair of consecutive-day run lengths, in days.
type Streak struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// CalculateStreak derives the current and longest streak from activity
// timestamps (any order, duplicates allowed).
//
// Timestamps are reduced to distinct calendar dates in loc. The current
// streak only counts if the latest date is today or yesterday relative to
// now; it then walks back until the first gap. The longest streak is the
// longest run anywhere in the history and is not anchored to today.
func CalculateStreak(timestamps []time.Time, now time.Time, loc *time.Location) Streak {
	days := distinctDaysDesc(timestamps, loc)
	if len(days) == 0 {
		return Streak{}
	}

	today := timeutil.DayNumber(now, loc)

	current := 0
	if days[0] == today || days[0] == today-1 {
		current = 1
		for i := 1; i < len(days); i++ {
			if days[i-1]-days[i] != 1 {
				break
			}
			current++
		}
	}

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i-1]-days[i] == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	return Streak{Current: current, Longest: longest}
}

// ActiveDays returns the number of distinct calendar dates with activity.
func ActiveDays(timestamps []time.Time, loc *time.Location) int {
	return len(distinctDaysDesc(timestamps, loc))
}

func distinctDaysDesc(timestamps []time.Time, loc *time.Location) []int {
	seen := make(map[int]struct{}, len(timestamps))
	days := make([]int, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.IsZero() {
			continue
		}
		d := timeutil.DayNumber(ts, loc)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(days)))
	return days
}

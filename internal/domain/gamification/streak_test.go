package gamification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return now.AddDate(0, 0, -n)
}

func TestCalculateStreak_Empty(t *testing.T) {
	assert.Equal(t, Streak{}, CalculateStreak(nil, now, time.UTC))
}

func TestCalculateStreak_SingleToday(t *testing.T) {
	assert.Equal(t, Streak{Current: 1, Longest: 1}, CalculateStreak([]time.Time{now}, now, time.UTC))
}

func TestCalculateStreak_SinglePast(t *testing.T) {
	assert.Equal(t, Streak{Current: 0, Longest: 1}, CalculateStreak([]time.Time{daysAgo(4)}, now, time.UTC))
}

func TestCalculateStreak_ThreeConsecutive(t *testing.T) {
	got := CalculateStreak([]time.Time{daysAgo(2), now, daysAgo(1)}, now, time.UTC)
	assert.Equal(t, Streak{Current: 3, Longest: 3}, got)
}

func TestCalculateStreak_EndingYesterday(t *testing.T) {
	got := CalculateStreak([]time.Time{daysAgo(1), daysAgo(2)}, now, time.UTC)
	assert.Equal(t, Streak{Current: 2, Longest: 2}, got)
}

func TestCalculateStreak_OnlyOldRun(t *testing.T) {
	got := CalculateStreak([]time.Time{daysAgo(5), daysAgo(6)}, now, time.UTC)
	assert.Equal(t, Streak{Current: 0, Longest: 2}, got)
}

func TestCalculateStreak_WithGap(t *testing.T) {
	got := CalculateStreak([]time.Time{now, daysAgo(1), daysAgo(3), daysAgo(4)}, now, time.UTC)
	assert.Equal(t, Streak{Current: 2, Longest: 2}, got)
}

func TestCalculateStreak_LongestInThePast(t *testing.T) {
	ts := []time.Time{now}
	for i := 10; i < 15; i++ {
		ts = append(ts, daysAgo(i))
	}
	got := CalculateStreak(ts, now, time.UTC)
	assert.Equal(t, Streak{Current: 1, Longest: 5}, got)
}

func TestCalculateStreak_DuplicatesSameDay(t *testing.T) {
	ts := []time.Time{
		now,
		now.Add(-time.Hour),
		now.Add(-3 * time.Hour),
		daysAgo(1),
		daysAgo(1).Add(-time.Hour),
	}
	assert.Equal(t, Streak{Current: 2, Longest: 2}, CalculateStreak(ts, now, time.UTC))
}

func TestCalculateStreak_ReferenceTimezone(t *testing.T) {
	plus5 := time.FixedZone("UTC+5", 5*60*60)
	// 20:00 UTC on the 14th is the 15th in UTC+5, same day as now.
	ts := []time.Time{time.Date(2025, 6, 14, 20, 0, 0, 0, time.UTC), now}

	assert.Equal(t, Streak{Current: 2, Longest: 2}, CalculateStreak(ts, now, time.UTC))
	assert.Equal(t, Streak{Current: 1, Longest: 1}, CalculateStreak(ts, now, plus5))
}

func TestCalculateStreak_FutureDateBreaksCurrent(t *testing.T) {
	got := CalculateStreak([]time.Time{now.AddDate(0, 0, 2), now}, now, time.UTC)
	assert.Equal(t, 0, got.Current)
	assert.Equal(t, 1, got.Longest)
}

func TestActiveDays(t *testing.T) {
	assert.Equal(t, 2, ActiveDays([]time.Time{now, now, daysAgo(3)}, time.UTC))
}

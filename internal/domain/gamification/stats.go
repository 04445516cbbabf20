package gamification

import (
	"time"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

// UserStats is the per-user aggregate snapshot. Level is always
// Level(TotalXP); counters only grow, except the current streak.
// Version is an optimistic concurrency token maintained by the store.
type UserStats struct {
	UserID             shared.UserID
	TotalXP            int
	Level              int
	CurrentStreak      int
	LongestStreak      int
	TotalActivities    int
	WorkoutCount       int
	LearningCount      int
	CreatingCount      int
	GoalsCompleted     int
	AchievementsEarned int
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewUserStats returns a zeroed snapshot at level 1.
func NewUserStats(userID shared.UserID, now time.Time) *UserStats {
	return &UserStats{
		UserID:    userID,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that can be modified independently.
func (s *UserStats) Clone() *UserStats {
	c := *s
	return &c
}

// CategoryCount returns the counter for a category. ok is false for
// categories the stats do not track.
func (s *UserStats) CategoryCount(c activity.Category) (count int, ok bool) {
	switch c {
	case activity.CategoryWorkout:
		return s.WorkoutCount, true
	case activity.CategoryLearning:
		return s.LearningCount, true
	case activity.CategoryCreating:
		return s.CreatingCount, true
	}
	return 0, false
}

// RecordActivity applies one new activity: adds its XP, bumps the total
// and category counters and replaces the streaks. The stored longest
// streak never decreases.
func (s *UserStats) RecordActivity(category activity.Category, xp int, streak Streak, now time.Time) {
	s.AddXP(xp)
	s.TotalActivities++
	switch category {
	case activity.CategoryWorkout:
		s.WorkoutCount++
	case activity.CategoryLearning:
		s.LearningCount++
	case activity.CategoryCreating:
		s.CreatingCount++
	}
	s.ApplyStreak(streak)
	s.UpdatedAt = now
}

// ApplyStreak replaces the current streak and keeps the best longest streak.
func (s *UserStats) ApplyStreak(streak Streak) {
	s.CurrentStreak = streak.Current
	if streak.Longest > s.LongestStreak {
		s.LongestStreak = streak.Longest
	}
}

// AddXP adds XP and recomputes the level.
func (s *UserStats) AddXP(xp int) {
	s.TotalXP += xp
	s.Level = Level(s.TotalXP)
}

// RecordAchievement credits an awarded achievement's reward.
func (s *UserStats) RecordAchievement(a Achievement, now time.Time) {
	s.AddXP(a.XPReward)
	s.AchievementsEarned++
	s.UpdatedAt = now
}

// RecordGoalCompleted increments the completed goals counter.
func (s *UserStats) RecordGoalCompleted(now time.Time) {
	s.GoalsCompleted++
	s.UpdatedAt = now
}

// XPForNextLevel returns the XP missing to reach the next level.
func (s *UserStats) XPForNextLevel() int {
	return XPForNextLevel(s.TotalXP)
}

// UserAchievement records that a user earned an achievement.
// There is at most one per (UserID, AchievementID).
type UserAchievement struct {
	UserID        shared.UserID
	AchievementID string
	EarnedAt      time.Time
	Shared        bool
}

// EarnedSet is the set of achievement ids a user already holds.
type EarnedSet map[string]struct{}

// NewEarnedSet builds an EarnedSet from earned records.
func NewEarnedSet(earned []UserAchievement) EarnedSet {
	set := make(EarnedSet, len(earned))
	for _, ua := range earned {
		set[ua.AchievementID] = struct{}{}
	}
	return set
}

// Has reports whether id is in the set.
func (e EarnedSet) Has(id string) bool {
	_, ok := e[id]
	return ok
}

// Add inserts id.
func (e EarnedSet) Add(id string) {
	e[id] = struct{}{}
}

// RebuildInput is everything needed to recompute a snapshot from scratch.
type RebuildInput struct {
	UserID         shared.UserID
	Activities     []*activity.Activity
	Earned         []UserAchievement
	GoalsCompleted int
	Previous       *UserStats // nil if there is no stored snapshot
	Now            time.Time
	Location       *time.Location
}

// Rebuild recomputes a snapshot from full history: activity XP plus the
// rewards of earned catalog achievements, counters and streaks. The
// longest streak and goals completed are never lowered below Previous.
func Rebuild(in RebuildInput, catalog *Catalog) *UserStats {
	stats := NewUserStats(in.UserID, in.Now)
	if in.Previous != nil {
		stats.CreatedAt = in.Previous.CreatedAt
		stats.Version = in.Previous.Version
		stats.LongestStreak = in.Previous.LongestStreak
		stats.GoalsCompleted = in.Previous.GoalsCompleted
	}
	if in.GoalsCompleted > stats.GoalsCompleted {
		stats.GoalsCompleted = in.GoalsCompleted
	}

	xp := 0
	for _, a := range in.Activities {
		xp += ActivityXP(a)
	}
	counts := activity.CountByCategory(in.Activities)
	stats.TotalActivities = len(in.Activities)
	stats.WorkoutCount = counts[activity.CategoryWorkout]
	stats.LearningCount = counts[activity.CategoryLearning]
	stats.CreatingCount = counts[activity.CategoryCreating]
	for _, ua := range in.Earned {
		xp += catalog.RewardFor(ua.AchievementID)
	}
	stats.AchievementsEarned = len(in.Earned)
	stats.AddXP(xp)
	stats.ApplyStreak(CalculateStreak(activity.Timestamps(in.Activities), in.Now, in.Location))
	stats.UpdatedAt = in.Now
	return stats
}

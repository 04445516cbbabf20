package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

func seedActivity(t *testing.T, f *fixture, id string, userID shared.UserID, cat activity.Category, minutes int, ts time.Time) {
	t.Helper()
	a, err := activity.NewActivity(activity.NewActivityParams{
		ID:              activity.ID(id),
		UserID:          userID,
		Category:        cat,
		Description:     "seeded",
		DurationMinutes: intPtr(minutes),
		Timestamp:       ts,
		CreatedAt:       ts,
	})
	require.NoError(t, err)
	require.NoError(t, f.activities.Save(context.Background(), a))
}

func TestRecomputeStats_CreatesMissingSnapshotAndAwards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	seedActivity(t, f, "a1", "user-1", activity.CategoryWorkout, 45, testNow.AddDate(0, 0, -2))
	seedActivity(t, f, "a2", "user-1", activity.CategoryLearning, 30, testNow.AddDate(0, 0, -1))
	seedActivity(t, f, "a3", "user-1", activity.CategoryWorkout, 200, testNow)

	res, err := f.recomputeHandler().Handle(ctx, "user-1")
	require.NoError(t, err)

	// 25 + 20 + 40 from activities, +50 for first-step.
	assert.Equal(t, []string{"first-step"}, achievementIDs(res.NewAchievements))
	assert.Equal(t, 135, res.Stats.TotalXP)
	assert.Equal(t, 2, res.Stats.Level)
	assert.Equal(t, 3, res.Stats.TotalActivities)
	assert.Equal(t, 2, res.Stats.WorkoutCount)
	assert.Equal(t, 1, res.Stats.LearningCount)
	assert.Equal(t, 3, res.Stats.CurrentStreak)
	assert.Equal(t, 1, res.Stats.AchievementsEarned)

	stored, err := f.stats.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 135, stored.TotalXP)
	assert.Contains(t, f.publisher.types(), shared.EventStatsRecomputed)
}

func TestRecomputeStats_RepairsDriftedSnapshot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h := f.recordHandler(nil)

	_, err := h.Handle(ctx, workout(45))
	require.NoError(t, err)

	// Simulate a lost update: a counter went missing and the longest streak
	// from an earlier period must survive.
	drifted, err := f.stats.Get(ctx, "user-1")
	require.NoError(t, err)
	drifted.TotalXP = 10
	drifted.TotalActivities = 0
	drifted.LongestStreak = 5
	require.NoError(t, f.stats.Save(ctx, drifted))

	res, err := f.recomputeHandler().Handle(ctx, "user-1")
	require.NoError(t, err)

	assert.Empty(t, res.NewAchievements)
	assert.Equal(t, 75, res.Stats.TotalXP)
	assert.Equal(t, 1, res.Stats.TotalActivities)
	assert.Equal(t, 5, res.Stats.LongestStreak)
	assert.Equal(t, 1, res.Stats.CurrentStreak)
}

// staleOnce fails the first Save with a version conflict.
type staleOnce struct {
	gamification.StatsRepository
	failed bool
}

func (s *staleOnce) Save(ctx context.Context, stats *gamification.UserStats) error {
	if !s.failed {
		s.failed = true
		return shared.ErrStatsVersionStale
	}
	return s.StatsRepository.Save(ctx, stats)
}

func TestRecomputeStats_RetriesOnVersionConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.recordHandler(nil).Handle(ctx, workout(45))
	require.NoError(t, err)

	stats := &staleOnce{StatsRepository: f.stats}
	h := NewRecomputeStatsHandler(f.activities, f.goals, stats, f.achievements, f.evaluator, f.publisher, f.config)

	res, err := h.Handle(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, stats.failed)
	assert.Equal(t, 75, res.Stats.TotalXP)
}

func TestRecomputeActiveSince(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	seedActivity(t, f, "old", "user-old", activity.CategoryWorkout, 10, testNow.AddDate(0, -2, 0))
	seedActivity(t, f, "a1", "user-1", activity.CategoryWorkout, 10, testNow)
	seedActivity(t, f, "b1", "user-2", activity.CategoryCreating, 10, testNow)

	summary, err := f.recomputeHandler().RecomputeActiveSince(ctx, testNow.AddDate(0, 0, -2))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Users)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.Awarded)

	_, err = f.stats.Get(ctx, "user-old")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecomputeActiveSince_CancelledContext(t *testing.T) {
	f := newFixture()
	seedActivity(t, f, "a1", "user-1", activity.CategoryWorkout, 10, testNow)
	seedActivity(t, f, "b1", "user-2", activity.CategoryLearning, 10, testNow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.recomputeHandler().RecomputeActiveSince(ctx, testNow.AddDate(0, 0, -2))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Users)
	assert.Equal(t, 0, summary.Failed)

	_, err = f.stats.Get(context.Background(), "user-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

func workout(minutes int) RecordActivityCommand {
	return RecordActivityCommand{
		UserID:          "user-1",
		Category:        "Workout",
		Description:     "Morning run",
		DurationMinutes: intPtr(minutes),
		Timestamp:       testNow.Add(-time.Hour),
	}
}

func TestRecordActivity_FirstActivityScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.recordHandler(nil).Handle(ctx, workout(45))
	require.NoError(t, err)

	assert.Equal(t, 25, res.ActivityXP)
	assert.Equal(t, 75, res.XPGained)
	assert.Equal(t, []string{"first-step"}, achievementIDs(res.NewAchievements))
	assert.NotContains(t, achievementIDs(res.NewAchievements), "fitness-warrior")
	assert.False(t, res.LeveledUp)

	stats, err := f.stats.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 75, stats.TotalXP)
	assert.Equal(t, 1, stats.Level)
	assert.Equal(t, 1, stats.TotalActivities)
	assert.Equal(t, 1, stats.WorkoutCount)
	assert.Equal(t, 0, stats.LearningCount)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 1, stats.LongestStreak)
	assert.Equal(t, 1, stats.AchievementsEarned)

	earned, err := f.achievements.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, "first-step", earned[0].AchievementID)
	assert.False(t, earned[0].Shared)

	assert.Equal(t, []shared.EventType{shared.EventActivityRecorded, shared.EventAchievementUnlocked}, f.publisher.types())
}

func TestRecordActivity_SecondActivityEarnsNothingNew(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h := f.recordHandler(nil)

	_, err := h.Handle(ctx, workout(45))
	require.NoError(t, err)

	res, err := h.Handle(ctx, RecordActivityCommand{
		UserID:      "user-1",
		Category:    "learning",
		Description: "Read a chapter",
		Detail: activity.Detail{Kind: activity.DetailMultiple, Items: []activity.ProgressItem{
			{Name: "Pages", Value: 30, Unit: "pages"},
		}},
		Timestamp: testNow,
	})
	require.NoError(t, err)

	assert.Equal(t, 15, res.XPGained)
	assert.Empty(t, res.NewAchievements)
	assert.Equal(t, 90, res.Stats.TotalXP)
	assert.Equal(t, 1, res.Stats.LearningCount)
	assert.Equal(t, 1, res.Stats.CurrentStreak)
}

func TestRecordActivity_LevelUp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	seed := gamification.NewUserStats("user-1", testNow.Add(-48*time.Hour))
	require.NoError(t, f.stats.Create(ctx, seed))
	seed.AddXP(90)
	seed.TotalActivities = 1
	require.NoError(t, f.stats.Save(ctx, seed))
	_, err := f.achievements.Award(ctx, gamification.UserAchievement{UserID: "user-1", AchievementID: "first-step", EarnedAt: testNow})
	require.NoError(t, err)

	res, err := f.recordHandler(nil).Handle(ctx, workout(15))
	require.NoError(t, err)

	assert.Equal(t, 15, res.XPGained)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 1, res.PreviousLevel)
	assert.Equal(t, 2, res.Stats.Level)
	assert.Equal(t, 105, res.Stats.TotalXP)
	assert.Contains(t, f.publisher.types(), shared.EventLevelUp)
}

func TestRecordActivity_StreakFromHistory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h := f.recordHandler(nil)

	for _, daysAgo := range []int{2, 1, 0} {
		cmd := workout(10)
		cmd.Timestamp = testNow.AddDate(0, 0, -daysAgo)
		_, err := h.Handle(ctx, cmd)
		require.NoError(t, err)
	}

	stats, err := f.stats.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.CurrentStreak)
	assert.Equal(t, 3, stats.LongestStreak)
	assert.Equal(t, 3, stats.WorkoutCount)
	assert.Equal(t, 30+50, stats.TotalXP)
}

func TestRecordActivity_GoalCompletion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	g, err := f.createGoalHandler().Handle(ctx, CreateGoalCommand{
		UserID:      "user-1",
		Title:       "Run twice",
		Category:    "Workout",
		Period:      "monthly",
		TargetCount: 2,
		SubGoals:    []SubGoalInput{{Name: "Intervals", TargetCount: 1}},
	})
	require.NoError(t, err)
	f.publisher.reset()

	h := f.recordHandler(nil)
	linked := RecordActivityCommand{
		UserID:      "user-1",
		Category:    "Workout",
		Description: "Run",
		GoalID:      string(g.ID),
		SubGoalID:   g.SubGoals[0].ID,
		Timestamp:   testNow,
	}

	first, err := h.Handle(ctx, linked)
	require.NoError(t, err)
	assert.Equal(t, 20, first.ActivityXP)
	assert.Nil(t, first.CompletedGoal)
	assert.Equal(t, 70, first.Stats.TotalXP)

	second, err := h.Handle(ctx, linked)
	require.NoError(t, err)
	require.NotNil(t, second.CompletedGoal)
	assert.Equal(t, g.ID, second.CompletedGoal.ID)
	assert.Equal(t, []string{"goal-setter", "goal-crusher"}, achievementIDs(second.NewAchievements))
	assert.Equal(t, 20+25+300, second.XPGained)
	assert.Equal(t, 1, second.Stats.GoalsCompleted)
	assert.Equal(t, 415, second.Stats.TotalXP)
	assert.Equal(t, 5, second.Stats.Level)
	assert.Contains(t, f.publisher.types(), shared.EventGoalCompleted)

	// A third activity does not complete the goal again.
	third, err := h.Handle(ctx, linked)
	require.NoError(t, err)
	assert.Nil(t, third.CompletedGoal)
	assert.Equal(t, 1, third.Stats.GoalsCompleted)

	completed, err := f.goals.CountCompleted(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
}

func TestRecordActivity_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h := f.recordHandler(nil)

	tests := []struct {
		name string
		cmd  RecordActivityCommand
		want error
	}{
		{"missing user", RecordActivityCommand{Category: "Workout", Description: "x"}, shared.ErrInvalidUserID},
		{"bad category", RecordActivityCommand{UserID: "user-1", Category: "Sleep", Description: "x"}, shared.ErrInvalidCategory},
		{"empty description", RecordActivityCommand{UserID: "user-1", Category: "Workout"}, shared.ErrInvalidDescription},
		{"unknown goal", RecordActivityCommand{UserID: "user-1", Category: "Workout", Description: "x", GoalID: "nope"}, shared.ErrGoalNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	list, err := f.activities.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecordActivity_SubGoalMustBelongToGoal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	g, err := f.createGoalHandler().Handle(ctx, CreateGoalCommand{
		UserID: "user-1", Title: "Read", Category: "Learning", Period: "yearly", TargetCount: 12,
		SubGoals: []SubGoalInput{{Name: "Fiction", TargetCount: 6}},
	})
	require.NoError(t, err)

	_, err = f.recordHandler(nil).Handle(ctx, RecordActivityCommand{
		UserID: "user-1", Category: "Learning", Description: "Read", GoalID: string(g.ID), SubGoalID: "other",
	})
	assert.True(t, shared.IsValidation(err))
}

func TestRecordActivity_SaveFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.activities.SaveErr = errors.New("disk full")

	res, err := f.recordHandler(nil).Handle(context.Background(), workout(30))
	assert.Error(t, err)
	assert.Nil(t, res)

	_, err = f.stats.Get(context.Background(), "user-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, f.publisher.types())
}

func TestRecordActivity_BookkeepingFailureKeepsActivity(t *testing.T) {
	f := newFixture()
	f.stats.SaveErr = errors.New("connection reset")
	ctx := context.Background()

	res, err := f.recordHandler(nil).Handle(ctx, workout(30))
	require.NoError(t, err)
	require.NotNil(t, res.Activity)
	assert.Equal(t, 0, res.XPGained)
	assert.Nil(t, res.Stats)
	assert.Empty(t, res.NewAchievements)

	stored, err := f.activities.GetByID(ctx, "user-1", res.Activity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Morning run", stored.Description)
	assert.Equal(t, []shared.EventType{shared.EventActivityRecorded}, f.publisher.types())
}

func TestRecordActivity_AwardLostToConcurrentRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.recordHandler(lostRaceAchievements{f.achievements}).Handle(ctx, workout(45))
	require.NoError(t, err)

	assert.Empty(t, res.NewAchievements)
	assert.Equal(t, 25, res.XPGained)
	assert.Equal(t, 25, res.Stats.TotalXP)
	assert.Equal(t, 0, res.Stats.AchievementsEarned)
}

func TestRecordActivity_RetriesOnStatsConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stats := &racingStats{StatsRepository: f.stats}
	h := NewRecordActivityHandler(f.activities, f.goals, stats, f.achievements, f.evaluator, f.publisher, f.config)

	res, err := h.Handle(ctx, workout(45))
	require.NoError(t, err)

	assert.Equal(t, 75, res.XPGained)
	assert.Equal(t, []string{"first-step"}, achievementIDs(res.NewAchievements))

	stored, err := f.stats.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalActivities)
	assert.Equal(t, 10+25+50, stored.TotalXP)
	assert.Equal(t, 1, stored.WorkoutCount)
	assert.Equal(t, 1, stored.AchievementsEarned)
	assert.Equal(t, stored.TotalXP, res.Stats.TotalXP)
}

func TestRecordActivity_FailedAwardSaveReportsNoRewards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stats := &failingNthSave{StatsRepository: f.stats, n: 2}
	h := NewRecordActivityHandler(f.activities, f.goals, stats, f.achievements, f.evaluator, f.publisher, f.config)

	res, err := h.Handle(ctx, workout(45))
	require.NoError(t, err)

	assert.Equal(t, 25, res.ActivityXP)
	assert.Equal(t, 25, res.XPGained)
	assert.Empty(t, res.NewAchievements)
	require.NotNil(t, res.Stats)
	assert.Equal(t, 25, res.Stats.TotalXP)
	assert.Equal(t, []shared.EventType{shared.EventActivityRecorded}, f.publisher.types())

	stored, err := f.stats.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 25, stored.TotalXP)
	assert.Equal(t, 0, stored.AchievementsEarned)

	// The award row is kept, and a recompute credits its reward.
	rebuilt, err := f.recomputeHandler().Handle(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, rebuilt.NewAchievements)
	assert.Equal(t, 75, rebuilt.Stats.TotalXP)
	assert.Equal(t, 1, rebuilt.Stats.AchievementsEarned)
}

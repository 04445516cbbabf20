package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/goal"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence/memory"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

var testNow = time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)

const user = shared.UserID("user-1")

func testConfig() Config {
	return Config{Location: time.UTC, Clock: timeutil.FixedClock{T: testNow}}
}

func seedActivity(t *testing.T, repo *memory.ActivityRepository, id string, c activity.Category, ts time.Time, mutate ...func(*activity.NewActivityParams)) {
	t.Helper()
	p := activity.NewActivityParams{
		ID:          activity.ID(id),
		UserID:      user,
		Category:    c,
		Description: "entry " + id,
		Timestamp:   ts,
		CreatedAt:   ts,
	}
	for _, m := range mutate {
		m(&p)
	}
	a, err := activity.NewActivity(p)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), a))
}

func TestGetStats_ZeroSnapshotForUnknownUser(t *testing.T) {
	h := NewGetStatsHandler(memory.NewStatsRepository(), nil)

	dto, err := h.Handle(context.Background(), GetStatsQuery{UserID: "nobody"})
	require.NoError(t, err)

	assert.Equal(t, "nobody", dto.UserID)
	assert.Equal(t, 0, dto.TotalXP)
	assert.Equal(t, 1, dto.Level)
	assert.Equal(t, 100, dto.XPForNextLevel)
	assert.Equal(t, 0, dto.LevelProgress)
	assert.Nil(t, dto.UpdatedAt)
}

func TestGetStats_DerivesLevelFields(t *testing.T) {
	repo := memory.NewStatsRepository()
	s := gamification.NewUserStats(user, testNow)
	s.TotalXP = 345
	s.Level = 2 // stale on purpose
	s.CurrentStreak = 3
	require.NoError(t, repo.Create(context.Background(), s))

	dto, err := NewGetStatsHandler(repo, nil).Handle(context.Background(), GetStatsQuery{UserID: string(user)})
	require.NoError(t, err)

	assert.Equal(t, 4, dto.Level)
	assert.Equal(t, 55, dto.XPForNextLevel)
	assert.Equal(t, 45, dto.LevelProgress)
	assert.Equal(t, 3, dto.CurrentStreak)
	require.NotNil(t, dto.UpdatedAt)
}

func TestGetStats_InvalidUser(t *testing.T) {
	_, err := NewGetStatsHandler(memory.NewStatsRepository(), nil).Handle(context.Background(), GetStatsQuery{UserID: "  "})
	assert.True(t, shared.IsValidation(err))
}

func TestListAchievements_AnnotatesCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := gamification.DefaultCatalog()
	achRepo := memory.NewAchievementRepository()
	statsRepo := memory.NewStatsRepository()

	s := gamification.NewUserStats(user, testNow)
	s.TotalActivities = 4
	s.WorkoutCount = 4
	s.CurrentStreak = 2
	require.NoError(t, statsRepo.Create(ctx, s))

	_, err := achRepo.Award(ctx, gamification.UserAchievement{UserID: user, AchievementID: "first-step", EarnedAt: testNow})
	require.NoError(t, err)
	require.NoError(t, achRepo.MarkShared(ctx, user, "first-step"))

	h := NewListAchievementsHandler(catalog, achRepo, statsRepo, nil)
	res, err := h.Handle(ctx, ListAchievementsQuery{UserID: string(user)})
	require.NoError(t, err)

	require.Len(t, res.Achievements, catalog.Len())
	assert.Equal(t, 1, res.EarnedCount)
	assert.Equal(t, catalog.Len(), res.TotalCount)

	byID := make(map[string]AchievementDTO)
	for _, a := range res.Achievements {
		byID[a.ID] = a
	}

	first := res.Achievements[0]
	assert.Equal(t, "first-step", first.ID)
	assert.True(t, first.Earned)
	assert.True(t, first.Shared)
	require.NotNil(t, first.EarnedAt)
	assert.Equal(t, 1, first.Progress)

	fitness := byID["fitness-warrior"]
	assert.False(t, fitness.Earned)
	assert.Nil(t, fitness.EarnedAt)
	assert.Equal(t, 4, fitness.Progress)
	assert.Equal(t, 10, fitness.Target)
	assert.Equal(t, "count", fitness.Criteria.Type)
	assert.Equal(t, "Workout", fitness.Criteria.Category)

	streak := byID["streak-starter"]
	assert.Equal(t, 2, streak.Progress)
	assert.Equal(t, 7, streak.Target)
	assert.Equal(t, "streak", streak.Category)
}

func TestListAchievements_EarnedOnly(t *testing.T) {
	ctx := context.Background()
	achRepo := memory.NewAchievementRepository()
	_, err := achRepo.Award(ctx, gamification.UserAchievement{UserID: user, AchievementID: "goal-setter", EarnedAt: testNow})
	require.NoError(t, err)

	h := NewListAchievementsHandler(gamification.DefaultCatalog(), achRepo, memory.NewStatsRepository(), nil)
	res, err := h.Handle(ctx, ListAchievementsQuery{UserID: string(user), EarnedOnly: true})
	require.NoError(t, err)

	require.Len(t, res.Achievements, 1)
	assert.Equal(t, "goal-setter", res.Achievements[0].ID)
}

func TestGetContributions_ZeroFilledAscending(t *testing.T) {
	repo := memory.NewActivityRepository()
	seedActivity(t, repo, "a1", activity.CategoryWorkout, testNow.Add(-time.Hour))
	seedActivity(t, repo, "a2", activity.CategoryLearning, testNow.Add(-2*time.Hour))
	seedActivity(t, repo, "a3", activity.CategoryWorkout, testNow.AddDate(0, 0, -2))
	seedActivity(t, repo, "a4", activity.CategoryWorkout, testNow.AddDate(0, 0, -7)) // outside a week

	h := NewGetContributionsHandler(repo, testConfig())
	res, err := h.Handle(context.Background(), GetContributionsQuery{UserID: string(user), Days: 7})
	require.NoError(t, err)

	require.Len(t, res.Contributions, 7)
	assert.Equal(t, "2025-06-09", res.Contributions[0].Date)
	assert.Equal(t, "2025-06-15", res.Contributions[6].Date)
	assert.Equal(t, 2, res.Contributions[6].Count)
	assert.Equal(t, 1, res.Contributions[4].Count)
	assert.Equal(t, 0, res.Contributions[0].Count)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.ActiveDays)

	for i := 1; i < len(res.Contributions); i++ {
		assert.Less(t, res.Contributions[i-1].Date, res.Contributions[i].Date)
	}
}

func TestGetContributions_UsesReferenceTimezone(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	repo := memory.NewActivityRepository()
	// 2025-06-15 18:30 UTC is already June 16th in Jakarta (UTC+7).
	seedActivity(t, repo, "a1", activity.CategoryWorkout, time.Date(2025, 6, 15, 18, 30, 0, 0, time.UTC))

	cfg := testConfig()
	cfg.Location = jakarta
	cfg.Clock = timeutil.FixedClock{T: time.Date(2025, 6, 15, 19, 0, 0, 0, time.UTC)}

	res, err := NewGetContributionsHandler(repo, cfg).Handle(context.Background(), GetContributionsQuery{UserID: string(user), Days: 7})
	require.NoError(t, err)

	last := res.Contributions[len(res.Contributions)-1]
	assert.Equal(t, "2025-06-16", last.Date)
	assert.Equal(t, 1, last.Count)
}

func TestGetContributions_Days(t *testing.T) {
	h := NewGetContributionsHandler(memory.NewActivityRepository(), testConfig())

	res, err := h.Handle(context.Background(), GetContributionsQuery{UserID: string(user)})
	require.NoError(t, err)
	assert.Len(t, res.Contributions, 365)
	assert.Equal(t, 0, res.Total)

	for _, days := range []int{1, 14, 366, -7} {
		_, err := h.Handle(context.Background(), GetContributionsQuery{UserID: string(user), Days: days})
		assert.True(t, shared.IsValidation(err), "days=%d", days)
	}
}

func TestListActivities_NewestFirstWithPaging(t *testing.T) {
	repo := memory.NewActivityRepository()
	for i := 0; i < 5; i++ {
		seedActivity(t, repo, fmt.Sprintf("a%d", i), activity.CategoryLearning, testNow.Add(time.Duration(-i)*time.Hour))
	}
	seedActivity(t, repo, "w", activity.CategoryWorkout, testNow.AddDate(0, 0, -1), func(p *activity.NewActivityParams) {
		d := 30
		p.DurationMinutes = &d
	})

	h := NewListActivitiesHandler(repo)

	res, err := h.Handle(context.Background(), ListActivitiesQuery{UserID: string(user), Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)
	require.Len(t, res.Activities, 2)
	assert.Equal(t, "a1", res.Activities[0].ID)
	assert.Equal(t, "a2", res.Activities[1].ID)

	res, err = h.Handle(context.Background(), ListActivitiesQuery{UserID: string(user), Category: "workout"})
	require.NoError(t, err)
	require.Len(t, res.Activities, 1)
	assert.Equal(t, 20, res.Activities[0].XP)
	assert.Equal(t, DefaultActivitiesLimit, res.Limit)

	res, err = h.Handle(context.Background(), ListActivitiesQuery{UserID: string(user), Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Activities)

	_, err = h.Handle(context.Background(), ListActivitiesQuery{UserID: string(user), Category: "sleep"})
	assert.ErrorIs(t, err, shared.ErrInvalidCategory)
}

func TestListGoalProgress(t *testing.T) {
	ctx := context.Background()
	goals := memory.NewGoalRepository()
	activities := memory.NewActivityRepository()

	subIDs := 0
	g, err := goal.NewGoal(goal.NewGoalParams{
		ID:          "goal-1",
		UserID:      user,
		Title:       "Run more",
		Category:    activity.CategoryWorkout,
		Period:      goal.PeriodMonthly,
		TargetCount: 4,
		SubGoals:    []goal.SubGoalParams{{Name: "Intervals", TargetCount: 2}},
		CreatedAt:   testNow.AddDate(0, -1, 0),
	}, func() string { subIDs++; return fmt.Sprintf("sub-%d", subIDs) })
	require.NoError(t, err)
	require.NoError(t, goals.Save(ctx, g))

	seedActivity(t, activities, "a1", activity.CategoryWorkout, testNow.Add(-time.Hour), func(p *activity.NewActivityParams) {
		p.GoalID = "goal-1"
		p.SubGoalID = "sub-1"
	})
	seedActivity(t, activities, "a2", activity.CategoryWorkout, testNow.AddDate(0, 0, -3))
	// Last month: outside the period but still counts for the sub-goal.
	seedActivity(t, activities, "a3", activity.CategoryWorkout, testNow.AddDate(0, -1, 0), func(p *activity.NewActivityParams) {
		p.GoalID = "goal-1"
		p.SubGoalID = "sub-1"
	})
	seedActivity(t, activities, "a4", activity.CategoryLearning, testNow.Add(-time.Hour))

	h := NewListGoalProgressHandler(goals, activities, testConfig())
	res, err := h.Handle(ctx, ListGoalProgressQuery{UserID: string(user)})
	require.NoError(t, err)

	require.Len(t, res.Goals, 1)
	dto := res.Goals[0]
	assert.Equal(t, 2, dto.Count)
	assert.Equal(t, 50, dto.Percentage)
	assert.False(t, dto.Reached)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), dto.PeriodStart)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), dto.PeriodEnd)

	require.Len(t, dto.SubGoals, 1)
	assert.Equal(t, "sub-1", dto.SubGoals[0].ID)
	assert.Equal(t, 2, dto.SubGoals[0].Count)
	assert.Equal(t, 100, dto.SubGoals[0].Percentage)
	assert.True(t, dto.SubGoals[0].Completed)
	assert.Equal(t, 0, res.Completed)
}

func TestListGoalProgress_NoGoals(t *testing.T) {
	h := NewListGoalProgressHandler(memory.NewGoalRepository(), memory.NewActivityRepository(), testConfig())
	res, err := h.Handle(context.Background(), ListGoalProgressQuery{UserID: string(user)})
	require.NoError(t, err)
	assert.NotNil(t, res.Goals)
	assert.Empty(t, res.Goals)
}

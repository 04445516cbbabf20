package memory

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

func TestStatsRepository_OptimisticVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewStatsRepository()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, repo.Create(ctx, gamification.NewUserStats("u1", now)))
	assert.ErrorIs(t, repo.Create(ctx, gamification.NewUserStats("u1", now)), shared.ErrAlreadyExists)

	a, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	b, err := repo.Get(ctx, "u1")
	require.NoError(t, err)

	a.AddXP(40)
	require.NoError(t, repo.Save(ctx, a))
	assert.Equal(t, int64(1), a.Version)

	b.AddXP(10)
	assert.ErrorIs(t, repo.Save(ctx, b), shared.ErrOptimisticLock)

	stored, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, stored.TotalXP)
}

func TestAchievementRepository_AwardIdempotentAndShare(t *testing.T) {
	ctx := context.Background()
	repo := NewAchievementRepository()
	ua := gamification.UserAchievement{UserID: "u1", AchievementID: "first-step", EarnedAt: time.Now()}

	ok, err := repo.Award(ctx, ua)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Award(ctx, ua)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, repo.MarkShared(ctx, "u1", "busy-bee"), shared.ErrAchievementNotEarned)
	require.NoError(t, repo.MarkShared(ctx, "u1", "first-step"))

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Shared)
}

func TestActivityRepository_NewestFirstAndSince(t *testing.T) {
	ctx := context.Background()
	repo := NewActivityRepository()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []activity.ID{"a", "b", "c"} {
		ts := base.AddDate(0, 0, i)
		require.NoError(t, repo.Save(ctx, &activity.Activity{ID: id, UserID: "u1", Category: activity.CategoryWorkout, Timestamp: ts, CreatedAt: ts}))
	}
	assert.ErrorIs(t, repo.Save(ctx, &activity.Activity{ID: "a", UserID: "u1"}), shared.ErrAlreadyExists)

	all, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, activity.ID("c"), all[0].ID)

	recent, err := repo.ListByUserSince(ctx, "u1", base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	users, err := repo.ListActiveUsersSince(ctx, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []shared.UserID{"u1"}, users)

	_, err = repo.GetByID(ctx, "u2", "a")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

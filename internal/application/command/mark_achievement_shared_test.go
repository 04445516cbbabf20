package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

func TestMarkAchievementShared(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h := NewMarkAchievementSharedHandler(f.achievements, gamification.DefaultCatalog(), f.publisher, nil)

	err := h.Handle(ctx, MarkAchievementSharedCommand{UserID: "user-1", AchievementID: "first-step"})
	assert.ErrorIs(t, err, shared.ErrAchievementNotEarned)
	assert.True(t, shared.IsNotFound(err))

	err = h.Handle(ctx, MarkAchievementSharedCommand{UserID: "user-1", AchievementID: "moon-landing"})
	assert.ErrorIs(t, err, shared.ErrAchievementUnknown)

	_, err = f.achievements.Award(ctx, gamification.UserAchievement{UserID: "user-1", AchievementID: "first-step", EarnedAt: testNow})
	require.NoError(t, err)

	require.NoError(t, h.Handle(ctx, MarkAchievementSharedCommand{UserID: "user-1", AchievementID: "first-step"}))

	earned, err := f.achievements.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, earned[0].Shared)
	assert.Equal(t, []shared.EventType{shared.EventAchievementShared}, f.publisher.types())
}

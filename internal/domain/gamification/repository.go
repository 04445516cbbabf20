package gamification

import (
	"context"

	"github.com/grithabit/grithabit/internal/domain/shared"
)

// StatsRepository persists UserStats snapshots.
type StatsRepository interface {
	// Get returns the user's snapshot or shared.ErrStatsNotFound.
	Get(ctx context.Context, userID shared.UserID) (*UserStats, error)

	// Create inserts a new snapshot with version 0. If one already exists
	// it returns an error wrapping shared.ErrAlreadyExists.
	Create(ctx context.Context, stats *UserStats) error

	// Save updates the snapshot if its stored version equals stats.Version,
	// then increments stats.Version. A mismatch returns shared.ErrStatsVersionStale.
	Save(ctx context.Context, stats *UserStats) error
}

// AchievementRepository persists earned achievements.
type AchievementRepository interface {
	// ListByUser returns the user's earned achievements, newest first.
	ListByUser(ctx context.Context, userID shared.UserID) ([]UserAchievement, error)

	// Award records an achievement. It reports false without error when the
	// (user, achievement) pair was already recorded.
	Award(ctx context.Context, ua UserAchievement) (bool, error)

	// MarkShared flags an earned achievement as shared.
	// Returns shared.ErrAchievementNotEarned if there is no such record.
	MarkShared(ctx context.Context, userID shared.UserID, achievementID string) error
}

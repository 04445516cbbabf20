package postgres

import (
	"context"
	"fmt"

	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS REPOSITORY IMPLEMENTATION
// Saves are guarded by the version column: an UPDATE that matches no row
// means another writer got there first.
// ══════════════════════════════════════════════════════════════════════════════

// StatsRepository implements gamification.StatsRepository for PostgreSQL.
type StatsRepository struct {
	conn *Connection
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(conn *Connection) *StatsRepository {
	return &StatsRepository{conn: conn}
}

// Get returns the user's snapshot.
func (r *StatsRepository) Get(ctx context.Context, userID shared.UserID) (*gamification.UserStats, error) {
	s := &gamification.UserStats{UserID: userID}
	err := r.conn.QueryRow(ctx, `
		SELECT total_xp, level, current_streak, longest_streak, total_activities,
		       workout_count, learning_count, creating_count, goals_completed,
		       achievements_earned, version, created_at, updated_at
		FROM user_stats WHERE user_id = $1
	`, userID.String()).Scan(
		&s.TotalXP, &s.Level, &s.CurrentStreak, &s.LongestStreak, &s.TotalActivities,
		&s.WorkoutCount, &s.LearningCount, &s.CreatingCount, &s.GoalsCompleted,
		&s.AchievementsEarned, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStatsNotFound
		}
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return s, nil
}

// Create inserts a new snapshot with version 0.
func (r *StatsRepository) Create(ctx context.Context, s *gamification.UserStats) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO user_stats (
			user_id, total_xp, level, current_streak, longest_streak, total_activities,
			workout_count, learning_count, creating_count, goals_completed,
			achievements_earned, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, $13)
	`,
		s.UserID.String(), s.TotalXP, s.Level, s.CurrentStreak, s.LongestStreak, s.TotalActivities,
		s.WorkoutCount, s.LearningCount, s.CreatingCount, s.GoalsCompleted,
		s.AchievementsEarned, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("gamification", "CreateStats", shared.ErrAlreadyExists, "user stats already exist", err)
		}
		return fmt.Errorf("failed to create stats: %w", err)
	}
	s.Version = 0
	return nil
}

// Save updates the snapshot if the stored version matches.
func (r *StatsRepository) Save(ctx context.Context, s *gamification.UserStats) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE user_stats SET
			total_xp = $3, level = $4, current_streak = $5, longest_streak = $6,
			total_activities = $7, workout_count = $8, learning_count = $9,
			creating_count = $10, goals_completed = $11, achievements_earned = $12,
			updated_at = $13, version = version + 1
		WHERE user_id = $1 AND version = $2
	`,
		s.UserID.String(), s.Version,
		s.TotalXP, s.Level, s.CurrentStreak, s.LongestStreak,
		s.TotalActivities, s.WorkoutCount, s.LearningCount,
		s.CreatingCount, s.GoalsCompleted, s.AchievementsEarned,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStatsVersionStale
	}
	s.Version++
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

// AchievementRepository implements gamification.AchievementRepository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// ListByUser returns the user's earned achievements, newest first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]gamification.UserAchievement, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT achievement_id, earned_at, shared
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY earned_at DESC, achievement_id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var out []gamification.UserAchievement
	for rows.Next() {
		ua := gamification.UserAchievement{UserID: userID}
		if err := rows.Scan(&ua.AchievementID, &ua.EarnedAt, &ua.Shared); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out = append(out, ua)
	}
	return out, rows.Err()
}

// Award records an achievement; the primary key makes it idempotent.
func (r *AchievementRepository) Award(ctx context.Context, ua gamification.UserAchievement) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, earned_at, shared)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, ua.UserID.String(), ua.AchievementID, ua.EarnedAt, ua.Shared)
	if err != nil {
		return false, fmt.Errorf("failed to award achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkShared flags an earned achievement as shared.
func (r *AchievementRepository) MarkShared(ctx context.Context, userID shared.UserID, achievementID string) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE user_achievements SET shared = TRUE
		WHERE user_id = $1 AND achievement_id = $2
	`, userID.String(), achievementID)
	if err != nil {
		return fmt.Errorf("failed to mark achievement shared: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAchievementNotEarned
	}
	return nil
}

// Compile-time interface checks.
var (
	_ gamification.AchievementRepository = (*AchievementRepository)(nil)
	_ gamification.StatsRepository       = (*StatsRepository)(nil)
)

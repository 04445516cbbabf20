package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// StatsRepository implements gamification.StatsRepository.
type StatsRepository struct {
	db *DB
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(db *DB) *StatsRepository {
	return &StatsRepository{db: db}
}

type statsRow struct {
	UserID             string `db:"user_id"`
	TotalXP            int    `db:"total_xp"`
	Level              int    `db:"level"`
	CurrentStreak      int    `db:"current_streak"`
	LongestStreak      int    `db:"longest_streak"`
	TotalActivities    int    `db:"total_activities"`
	WorkoutCount       int    `db:"workout_count"`
	LearningCount      int    `db:"learning_count"`
	CreatingCount      int    `db:"creating_count"`
	GoalsCompleted     int    `db:"goals_completed"`
	AchievementsEarned int    `db:"achievements_earned"`
	Version            int64  `db:"version"`
	CreatedAt          int64  `db:"created_at"`
	UpdatedAt          int64  `db:"updated_at"`
}

func newStatsRow(s *gamification.UserStats) statsRow {
	return statsRow{
		UserID:             s.UserID.String(),
		TotalXP:            s.TotalXP,
		Level:              s.Level,
		CurrentStreak:      s.CurrentStreak,
		LongestStreak:      s.LongestStreak,
		TotalActivities:    s.TotalActivities,
		WorkoutCount:       s.WorkoutCount,
		LearningCount:      s.LearningCount,
		CreatingCount:      s.CreatingCount,
		GoalsCompleted:     s.GoalsCompleted,
		AchievementsEarned: s.AchievementsEarned,
		Version:            s.Version,
		CreatedAt:          toNanos(s.CreatedAt),
		UpdatedAt:          toNanos(s.UpdatedAt),
	}
}

func (r statsRow) toDomain() *gamification.UserStats {
	return &gamification.UserStats{
		UserID:             shared.UserID(r.UserID),
		TotalXP:            r.TotalXP,
		Level:              r.Level,
		CurrentStreak:      r.CurrentStreak,
		LongestStreak:      r.LongestStreak,
		TotalActivities:    r.TotalActivities,
		WorkoutCount:       r.WorkoutCount,
		LearningCount:      r.LearningCount,
		CreatingCount:      r.CreatingCount,
		GoalsCompleted:     r.GoalsCompleted,
		AchievementsEarned: r.AchievementsEarned,
		Version:            r.Version,
		CreatedAt:          fromNanos(r.CreatedAt),
		UpdatedAt:          fromNanos(r.UpdatedAt),
	}
}

// Get returns the user's snapshot.
func (r *StatsRepository) Get(ctx context.Context, userID shared.UserID) (*gamification.UserStats, error) {
	var row statsRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM user_stats WHERE user_id = ?`, userID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrStatsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return row.toDomain(), nil
}

// Create inserts a new snapshot with version 0.
func (r *StatsRepository) Create(ctx context.Context, s *gamification.UserStats) error {
	row := newStatsRow(s)
	row.Version = 0

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO user_stats (
			user_id, total_xp, level, current_streak, longest_streak, total_activities,
			workout_count, learning_count, creating_count, goals_completed,
			achievements_earned, version, created_at, updated_at
		) VALUES (
			:user_id, :total_xp, :level, :current_streak, :longest_streak, :total_activities,
			:workout_count, :learning_count, :creating_count, :goals_completed,
			:achievements_earned, :version, :created_at, :updated_at
		)`, row)
	if err != nil {
		if isConstraintViolation(err) {
			return shared.WrapError("gamification", "CreateStats", shared.ErrAlreadyExists, "user stats already exist", err)
		}
		return fmt.Errorf("failed to create stats: %w", err)
	}
	s.Version = 0
	return nil
}

// Save updates the snapshot if the stored version matches.
func (r *StatsRepository) Save(ctx context.Context, s *gamification.UserStats) error {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE user_stats SET
			total_xp = :total_xp, level = :level, current_streak = :current_streak,
			longest_streak = :longest_streak, total_activities = :total_activities,
			workout_count = :workout_count, learning_count = :learning_count,
			creating_count = :creating_count, goals_completed = :goals_completed,
			achievements_earned = :achievements_earned, updated_at = :updated_at,
			version = version + 1
		WHERE user_id = :user_id AND version = :version`, newStatsRow(s))
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.ErrStatsVersionStale
	}
	s.Version++
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements gamification.AchievementRepository.
type AchievementRepository struct {
	db *DB
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(db *DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

type achievementRow struct {
	UserID        string `db:"user_id"`
	AchievementID string `db:"achievement_id"`
	EarnedAt      int64  `db:"earned_at"`
	Shared        bool   `db:"shared"`
}

// ListByUser returns the user's earned achievements, newest first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]gamification.UserAchievement, error) {
	var rows []achievementRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT user_id, achievement_id, earned_at, shared FROM user_achievements
		WHERE user_id = ? ORDER BY earned_at DESC, achievement_id`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}

	out := make([]gamification.UserAchievement, 0, len(rows))
	for _, row := range rows {
		out = append(out, gamification.UserAchievement{
			UserID:        shared.UserID(row.UserID),
			AchievementID: row.AchievementID,
			EarnedAt:      fromNanos(row.EarnedAt),
			Shared:        row.Shared,
		})
	}
	return out, nil
}

// Award records an achievement once per (user, achievement).
func (r *AchievementRepository) Award(ctx context.Context, ua gamification.UserAchievement) (bool, error) {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, earned_at, shared)
		VALUES (:user_id, :achievement_id, :earned_at, :shared)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`, achievementRow{
		UserID:        ua.UserID.String(),
		AchievementID: ua.AchievementID,
		EarnedAt:      toNanos(ua.EarnedAt),
		Shared:        ua.Shared,
	})
	if err != nil {
		return false, fmt.Errorf("failed to award achievement: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// MarkShared flags an earned achievement as shared.
func (r *AchievementRepository) MarkShared(ctx context.Context, userID shared.UserID, achievementID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_achievements SET shared = TRUE WHERE user_id = ? AND achievement_id = ?`,
		userID.String(), achievementID)
	if err != nil {
		return fmt.Errorf("failed to mark achievement shared: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.ErrAchievementNotEarned
	}
	return nil
}

var (
	_ gamification.StatsRepository       = (*StatsRepository)(nil)
	_ gamification.AchievementRepository = (*AchievementRepository)(nil)
)

package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATS QUERY
// Returns the user's gamification snapshot plus derived level data.
// Users who never recorded anything get a zero snapshot at level 1.
// ══════════════════════════════════════════════════════════════════════════════

// GetStatsQuery selects whose stats to return.
type GetStatsQuery struct {
	UserID string
}

// StatsDTO is the read model of UserStats.
type StatsDTO struct {
	UserID             string `json:"user_id"`
	TotalXP            int    `json:"total_xp"`
	Level              int    `json:"level"`
	XPForNextLevel     int    `json:"xp_for_next_level"`
	LevelProgress      int    `json:"level_progress"`
	CurrentStreak      int    `json:"current_streak"`
	LongestStreak      int    `json:"longest_streak"`
	TotalActivities    int    `json:"total_activities"`
	WorkoutCount       int    `json:"workout_count"`
	LearningCount      int    `json:"learning_count"`
	CreatingCount      int    `json:"creating_count"`
	GoalsCompleted     int    `json:"goals_completed"`
	AchievementsEarned int    `json:"achievements_earned"`

	// UpdatedAt is nil for a user without a stored snapshot.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// NewStatsDTO converts a snapshot. Level is recomputed from TotalXP so a
// drifted stored level never leaks to clients.
func NewStatsDTO(s *gamification.UserStats) StatsDTO {
	dto := StatsDTO{
		UserID:             s.UserID.String(),
		TotalXP:            s.TotalXP,
		Level:              gamification.Level(s.TotalXP),
		XPForNextLevel:     gamification.XPForNextLevel(s.TotalXP),
		LevelProgress:      gamification.LevelProgress(s.TotalXP),
		CurrentStreak:      s.CurrentStreak,
		LongestStreak:      s.LongestStreak,
		TotalActivities:    s.TotalActivities,
		WorkoutCount:       s.WorkoutCount,
		LearningCount:      s.LearningCount,
		CreatingCount:      s.CreatingCount,
		GoalsCompleted:     s.GoalsCompleted,
		AchievementsEarned: s.AchievementsEarned,
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		dto.UpdatedAt = &t
	}
	return dto
}

// GetStatsHandler handles GetStatsQuery.
type GetStatsHandler struct {
	statsRepo gamification.StatsRepository
	log       *logger.Logger
}

// NewGetStatsHandler creates a new handler.
func NewGetStatsHandler(statsRepo gamification.StatsRepository, log *logger.Logger) *GetStatsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetStatsHandler{statsRepo: statsRepo, log: log}
}

// Handle loads the snapshot.
func (h *GetStatsHandler) Handle(ctx context.Context, q GetStatsQuery) (*StatsDTO, error) {
	userID, err := parseUserID("GetStats", q.UserID)
	if err != nil {
		return nil, err
	}

	stats, err := loadStats(ctx, h.statsRepo, userID)
	if err != nil {
		logger.FromContextOr(ctx, h.log).Error("failed to load stats", logger.UserID(userID.String()), logger.Err(err))
		return nil, err
	}

	dto := NewStatsDTO(stats)
	return &dto, nil
}

// loadStats returns the stored snapshot or a zero one (not persisted).
func loadStats(ctx context.Context, repo gamification.StatsRepository, userID shared.UserID) (*gamification.UserStats, error) {
	stats, err := repo.Get(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return gamification.NewUserStats(userID, time.Time{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}

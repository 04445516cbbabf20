package command

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/goal"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/logger"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE STATS COMMAND
// Rebuilds a user's stats from full history. Repairs snapshots left behind
// by failed bookkeeping or lost concurrent updates, and awards achievements
// that were missed along the way.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// maxRecomputeAttempts bounds retries on optimistic lock conflicts.
	maxRecomputeAttempts = 3

	// recomputeConcurrency is how many users a batch run rebuilds at once.
	recomputeConcurrency = 4
)

// RecomputeStatsResult reports a single recomputation.
type RecomputeStatsResult struct {
	Stats           *gamification.UserStats
	NewAchievements []gamification.Achievement
}

// RecomputeAllResult summarizes a batch run.
type RecomputeAllResult struct {
	Users    int
	Failed   int
	Awarded  int
	Duration time.Duration
}

// RecomputeStatsHandler rebuilds UserStats snapshots.
type RecomputeStatsHandler struct {
	activityRepo    activity.Repository
	goalRepo        goal.Repository
	statsRepo       gamification.StatsRepository
	achievementRepo gamification.AchievementRepository
	evaluator       *gamification.Evaluator
	eventPublisher  shared.EventPublisher
	clock           timeutil.Clock
	location        *time.Location
	log             *logger.Logger
}

// NewRecomputeStatsHandler creates a new RecomputeStatsHandler.
func NewRecomputeStatsHandler(
	activityRepo activity.Repository,
	goalRepo goal.Repository,
	statsRepo gamification.StatsRepository,
	achievementRepo gamification.AchievementRepository,
	evaluator *gamification.Evaluator,
	eventPublisher shared.EventPublisher,
	config RecordActivityHandlerConfig,
) *RecomputeStatsHandler {
	defaults := DefaultRecordActivityHandlerConfig()
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &RecomputeStatsHandler{
		activityRepo:    activityRepo,
		goalRepo:        goalRepo,
		statsRepo:       statsRepo,
		achievementRepo: achievementRepo,
		evaluator:       evaluator,
		eventPublisher:  eventPublisher,
		clock:           config.Clock,
		location:        config.Location,
		log:             config.Logger.With(logger.Component("recompute_stats")),
	}
}

// Handle recomputes one user's stats.
func (h *RecomputeStatsHandler) Handle(ctx context.Context, rawUserID string) (*RecomputeStatsResult, error) {
	userID, err := shared.NewUserID(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("recompute_stats: validation failed: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxRecomputeAttempts; attempt++ {
		result, err := h.recompute(ctx, userID)
		if err == nil {
			publish(h.eventPublisher, h.log,
				shared.NewStatsRecomputedEvent(userID.String(), result.Stats.TotalXP, result.Stats.Level))
			return result, nil
		}
		if !errors.Is(err, shared.ErrOptimisticLock) {
			return nil, fmt.Errorf("recompute_stats: %w", err)
		}
		lastErr = err
		h.log.Debug("stats changed during recompute, retrying",
			logger.UserID(userID.String()), logger.Int("attempt", attempt))
	}

	return nil, fmt.Errorf("recompute_stats: %w", lastErr)
}

func (h *RecomputeStatsHandler) recompute(ctx context.Context, userID shared.UserID) (*RecomputeStatsResult, error) {
	now := h.clock.Now()

	previous, err := h.statsRepo.Get(ctx, userID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	if err != nil {
		previous = nil
	}

	activities, err := h.activityRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	earned, err := h.achievementRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	goalsCompleted, err := h.goalRepo.CountCompleted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count completed goals: %w", err)
	}

	stats := gamification.Rebuild(gamification.RebuildInput{
		UserID:         userID,
		Activities:     activities,
		Earned:         earned,
		GoalsCompleted: goalsCompleted,
		Previous:       previous,
		Now:            now,
		Location:       h.location,
	}, h.evaluator.Catalog())

	result := &RecomputeStatsResult{}
	set := gamification.NewEarnedSet(earned)
	for _, a := range h.evaluator.Evaluate(stats, set) {
		awarded, err := h.achievementRepo.Award(ctx, gamification.UserAchievement{
			UserID:        userID,
			AchievementID: a.ID,
			EarnedAt:      now,
		})
		if err != nil {
			return nil, fmt.Errorf("award %s: %w", a.ID, err)
		}
		if awarded {
			stats.RecordAchievement(a, now)
			result.NewAchievements = append(result.NewAchievements, a)
		}
	}

	if previous == nil {
		if err := h.statsRepo.Create(ctx, stats); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				return nil, shared.ErrStatsVersionStale
			}
			return nil, fmt.Errorf("create stats: %w", err)
		}
	} else if err := h.statsRepo.Save(ctx, stats); err != nil {
		return nil, fmt.Errorf("save stats: %w", err)
	}

	result.Stats = stats
	return result, nil
}

// RecomputeActiveSince recomputes every user who recorded an activity
// after since. Individual failures are logged and counted.
func (h *RecomputeStatsHandler) RecomputeActiveSince(ctx context.Context, since time.Time) (*RecomputeAllResult, error) {
	start := time.Now()

	users, err := h.activityRepo.ListActiveUsersSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("recompute_stats: list active users: %w", err)
	}

	var failed, awarded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recomputeConcurrency)

	for _, userID := range users {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			result, err := h.Handle(gctx, userID.String())
			if err != nil {
				failed.Add(1)
				h.log.Error("recompute failed", logger.UserID(userID.String()), logger.Err(err))
				return nil
			}
			awarded.Add(int64(len(result.NewAchievements)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("recompute_stats: %w", err)
	}

	summary := &RecomputeAllResult{
		Users:   len(users),
		Failed:  int(failed.Load()),
		Awarded: int(awarded.Load()),
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

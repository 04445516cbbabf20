// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/goal"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/logger"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMAND
// Saves a new activity and runs the gamification bookkeeping for it:
// XP, streaks, counters, goal completion and achievements.
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityCommand contains the data to record an activity.
type RecordActivityCommand struct {
	UserID string

	// Category accepts the canonical names and common spellings.
	Category string

	Description string
	Detail      activity.Detail

	DurationMinutes     *int
	GoalID              string
	SubGoalID           string
	GoalProgressPercent *int

	// Timestamp is when the effort happened (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordActivityCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if _, err := activity.ParseCategory(c.Category); err != nil {
		return err
	}
	return nil
}

// RecordActivityResult contains the result of recording an activity.
// Activity is always set. The gamification fields stay empty if the
// bookkeeping step failed; the activity is recorded regardless.
type RecordActivityResult struct {
	Activity *activity.Activity

	// ActivityXP is the XP of the activity alone.
	ActivityXP int

	// XPGained is ActivityXP plus the rewards of NewAchievements.
	XPGained int

	// NewAchievements in catalog order.
	NewAchievements []gamification.Achievement

	// Stats is the snapshot after bookkeeping, nil if it failed.
	Stats *gamification.UserStats

	LeveledUp     bool
	PreviousLevel int

	// CompletedGoal is set when this activity completed a linked goal.
	CompletedGoal *goal.Goal
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityHandler handles the RecordActivityCommand.
type RecordActivityHandler struct {
	activityRepo    activity.Repository
	goalRepo        goal.Repository
	statsRepo       gamification.StatsRepository
	achievementRepo gamification.AchievementRepository
	evaluator       *gamification.Evaluator
	eventPublisher  shared.EventPublisher
	log             *logger.Logger

	clock    timeutil.Clock
	location *time.Location
	newID    func() string
}

// RecordActivityHandlerConfig contains configuration for the handler.
type RecordActivityHandlerConfig struct {
	// Location is the reference timezone for streaks and goal periods.
	Location *time.Location
	Clock    timeutil.Clock
	NewID    func() string
	Logger   *logger.Logger
}

// DefaultRecordActivityHandlerConfig returns default configuration.
func DefaultRecordActivityHandlerConfig() RecordActivityHandlerConfig {
	return RecordActivityHandlerConfig{
		Location: time.UTC,
		Clock:    timeutil.SystemClock{},
		NewID:    uuid.NewString,
		Logger:   logger.Nop(),
	}
}

// NewRecordActivityHandler creates a new RecordActivityHandler.
func NewRecordActivityHandler(
	activityRepo activity.Repository,
	goalRepo goal.Repository,
	statsRepo gamification.StatsRepository,
	achievementRepo gamification.AchievementRepository,
	evaluator *gamification.Evaluator,
	eventPublisher shared.EventPublisher,
	config RecordActivityHandlerConfig,
) *RecordActivityHandler {
	defaults := DefaultRecordActivityHandlerConfig()
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	if config.NewID == nil {
		config.NewID = defaults.NewID
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &RecordActivityHandler{
		activityRepo:    activityRepo,
		goalRepo:        goalRepo,
		statsRepo:       statsRepo,
		achievementRepo: achievementRepo,
		evaluator:       evaluator,
		eventPublisher:  eventPublisher,
		log:             config.Logger.With(logger.Component("record_activity")),
		clock:           config.Clock,
		location:        config.Location,
		newID:           config.NewID,
	}
}

// Handle executes the record activity command.
// Only validation and the activity write can fail the call.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (*RecordActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_activity: validation failed: %w", err)
	}

	userID, _ := shared.NewUserID(cmd.UserID)
	category, _ := activity.ParseCategory(cmd.Category)
	now := h.clock.Now()

	var linkedGoal *goal.Goal
	if cmd.GoalID != "" {
		g, err := h.goalRepo.GetByID(ctx, userID, goal.ID(cmd.GoalID))
		if err != nil {
			return nil, fmt.Errorf("record_activity: failed to get goal: %w", err)
		}
		if cmd.SubGoalID != "" && !g.HasSubGoal(cmd.SubGoalID) {
			return nil, fmt.Errorf("record_activity: %w",
				shared.NewDomainError("activity", "Validate", shared.ErrInvalidInput, "sub-goal does not belong to goal"))
		}
		linkedGoal = g
	}

	act, err := activity.NewActivity(activity.NewActivityParams{
		ID:                  activity.ID(h.newID()),
		UserID:              userID,
		Category:            category,
		Description:         cmd.Description,
		Detail:              cmd.Detail,
		DurationMinutes:     cmd.DurationMinutes,
		GoalID:              cmd.GoalID,
		SubGoalID:           cmd.SubGoalID,
		GoalProgressPercent: cmd.GoalProgressPercent,
		Timestamp:           cmd.Timestamp,
		CreatedAt:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("record_activity: validation failed: %w", err)
	}

	if err := h.activityRepo.Save(ctx, act); err != nil {
		return nil, fmt.Errorf("record_activity: failed to save activity: %w", err)
	}

	result := &RecordActivityResult{Activity: act}
	log := logger.FromContextOr(ctx, h.log).With(logger.UserID(userID.String()), logger.ActivityID(string(act.ID)))

	if err := h.applyGamification(ctx, act, linkedGoal, now, result); err != nil {
		log.Error("gamification bookkeeping failed, activity kept", logger.Err(err))
	}
	h.markLevelUp(result)

	h.publishEvents(cmd.CorrelationID, result)

	log.Info("activity recorded",
		logger.Category(category.String()),
		logger.XPAmount(result.XPGained),
		logger.Int("new_achievements", len(result.NewAchievements)),
	)

	return result, nil
}

// applyGamification performs steps (a)-(h) of the stats update. Each stats
// write is retried on a version conflict, and result is only filled in
// once the write it reports has been persisted.
func (h *RecordActivityHandler) applyGamification(
	ctx context.Context,
	act *activity.Activity,
	linkedGoal *goal.Goal,
	now time.Time,
	result *RecordActivityResult,
) error {
	history, err := h.historyWith(ctx, act)
	if err != nil {
		return err
	}

	goalCompleted := false
	if linkedGoal != nil && !linkedGoal.IsCompleted() {
		progress := goal.CalculateProgress(linkedGoal, history, now, h.location)
		if progress.Reached {
			completed, err := h.goalRepo.MarkCompleted(ctx, act.UserID, linkedGoal.ID, now)
			if err != nil {
				return fmt.Errorf("mark goal completed: %w", err)
			}
			if completed {
				linkedGoal.MarkCompleted(now)
				result.CompletedGoal = linkedGoal
				goalCompleted = true
			}
		}
	}

	xp := gamification.ActivityXP(act)
	var stats *gamification.UserStats
	for attempt := 1; ; attempt++ {
		var previousLevel int
		stats, previousLevel, err = h.saveActivityStats(ctx, act, history, xp, goalCompleted, now)
		if err == nil {
			result.PreviousLevel = previousLevel
			break
		}
		if !errors.Is(err, shared.ErrOptimisticLock) || attempt == maxRecomputeAttempts {
			return err
		}
		h.log.Debug("stats changed while recording activity, retrying",
			logger.UserID(act.UserID.String()), logger.Int("attempt", attempt))
		if history, err = h.historyWith(ctx, act); err != nil {
			return err
		}
	}
	result.ActivityXP = xp
	result.XPGained = xp
	result.Stats = stats.Clone()

	earned, err := h.achievementRepo.ListByUser(ctx, act.UserID)
	if err != nil {
		return fmt.Errorf("list achievements: %w", err)
	}

	var awarded []gamification.Achievement
	for _, a := range h.evaluator.Evaluate(stats, gamification.NewEarnedSet(earned)) {
		ok, err := h.achievementRepo.Award(ctx, gamification.UserAchievement{
			UserID:        act.UserID,
			AchievementID: a.ID,
			EarnedAt:      now,
		})
		if err != nil {
			return fmt.Errorf("award %s: %w", a.ID, err)
		}
		if !ok {
			// Another request recorded it first.
			continue
		}
		awarded = append(awarded, a)
	}
	if len(awarded) == 0 {
		return nil
	}

	credited, err := h.creditAchievements(ctx, stats, awarded, now)
	if err != nil {
		return err
	}
	result.NewAchievements = awarded
	for _, a := range awarded {
		result.XPGained += a.XPReward
	}
	result.Stats = credited.Clone()
	return nil
}

// saveActivityStats applies the activity to a fresh copy of the stored
// stats and saves it. It returns the saved stats and the level before.
func (h *RecordActivityHandler) saveActivityStats(
	ctx context.Context,
	act *activity.Activity,
	history []*activity.Activity,
	xp int,
	goalCompleted bool,
	now time.Time,
) (*gamification.UserStats, int, error) {
	stats, err := h.loadOrInitStats(ctx, act.UserID, now)
	if err != nil {
		return nil, 0, err
	}
	previousLevel := stats.Level

	streak := gamification.CalculateStreak(activity.Timestamps(history), now, h.location)
	stats.RecordActivity(act.Category, xp, streak, now)
	if goalCompleted {
		stats.RecordGoalCompleted(now)
	}

	if err := h.statsRepo.Save(ctx, stats); err != nil {
		return nil, 0, fmt.Errorf("save stats: %w", err)
	}
	return stats, previousLevel, nil
}

// creditAchievements adds the rewards of freshly awarded achievements to
// the stats, reloading them if another writer got there first.
func (h *RecordActivityHandler) creditAchievements(
	ctx context.Context,
	stats *gamification.UserStats,
	awarded []gamification.Achievement,
	now time.Time,
) (*gamification.UserStats, error) {
	for attempt := 1; ; attempt++ {
		credited := stats.Clone()
		for _, a := range awarded {
			credited.RecordAchievement(a, now)
		}

		err := h.statsRepo.Save(ctx, credited)
		if err == nil {
			return credited, nil
		}
		if !errors.Is(err, shared.ErrOptimisticLock) || attempt == maxRecomputeAttempts {
			return nil, fmt.Errorf("save stats after awards: %w", err)
		}
		if stats, err = h.statsRepo.Get(ctx, stats.UserID); err != nil {
			return nil, fmt.Errorf("get stats: %w", err)
		}
	}
}

// historyWith lists the user's activities, act included.
func (h *RecordActivityHandler) historyWith(ctx context.Context, act *activity.Activity) ([]*activity.Activity, error) {
	history, err := h.activityRepo.ListByUser(ctx, act.UserID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return ensureIncluded(history, act), nil
}

// loadOrInitStats returns the stored snapshot, creating a zeroed one if absent.
func (h *RecordActivityHandler) loadOrInitStats(ctx context.Context, userID shared.UserID, now time.Time) (*gamification.UserStats, error) {
	stats, err := h.statsRepo.Get(ctx, userID)
	if err == nil {
		return stats, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	stats = gamification.NewUserStats(userID, now)
	if err := h.statsRepo.Create(ctx, stats); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return nil, fmt.Errorf("create stats: %w", err)
		}
		// Created concurrently by another request.
		if stats, err = h.statsRepo.Get(ctx, userID); err != nil {
			return nil, fmt.Errorf("get stats: %w", err)
		}
	}
	return stats, nil
}

func (h *RecordActivityHandler) markLevelUp(result *RecordActivityResult) {
	if result.Stats != nil && result.Stats.Level > result.PreviousLevel {
		result.LeveledUp = true
	}
}

func (h *RecordActivityHandler) publishEvents(correlationID string, result *RecordActivityResult) {
	act := result.Activity
	userID := act.UserID.String()

	recorded := shared.NewActivityRecordedEvent(userID, string(act.ID), act.Category.String(), result.XPGained)
	recorded.BaseEvent = recorded.BaseEvent.WithCorrelationID(correlationID)
	events := []shared.Event{recorded}

	if result.LeveledUp {
		e := shared.NewLevelUpEvent(userID, result.PreviousLevel, result.Stats.Level, result.Stats.TotalXP)
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		events = append(events, e)
	}
	for _, a := range result.NewAchievements {
		e := shared.NewAchievementUnlockedEvent(userID, a.ID, string(a.Rarity), a.XPReward)
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		events = append(events, e)
	}
	if result.CompletedGoal != nil {
		e := shared.NewGoalCompletedEvent(userID, string(result.CompletedGoal.ID))
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		events = append(events, e)
	}

	publish(h.eventPublisher, h.log, events...)
}

// ensureIncluded appends act to history if the store did not return it yet.
func ensureIncluded(history []*activity.Activity, act *activity.Activity) []*activity.Activity {
	for _, a := range history {
		if a.ID == act.ID {
			return history
		}
	}
	return append(history, act)
}

package command

import (
	"context"
	"fmt"

	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/logger"
)

// MarkAchievementSharedCommand flags an earned achievement as shared.
type MarkAchievementSharedCommand struct {
	UserID        string
	AchievementID string
}

// MarkAchievementSharedHandler handles MarkAchievementSharedCommand.
type MarkAchievementSharedHandler struct {
	achievementRepo gamification.AchievementRepository
	catalog         *gamification.Catalog
	eventPublisher  shared.EventPublisher
	log             *logger.Logger
}

// NewMarkAchievementSharedHandler creates a new MarkAchievementSharedHandler.
func NewMarkAchievementSharedHandler(
	achievementRepo gamification.AchievementRepository,
	catalog *gamification.Catalog,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *MarkAchievementSharedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &MarkAchievementSharedHandler{
		achievementRepo: achievementRepo,
		catalog:         catalog,
		eventPublisher:  eventPublisher,
		log:             log.With(logger.Component("share_achievement")),
	}
}

// Handle marks the achievement as shared. It fails with
// shared.ErrAchievementUnknown for ids outside the catalog and with
// shared.ErrAchievementNotEarned if the user does not hold it.
func (h *MarkAchievementSharedHandler) Handle(ctx context.Context, cmd MarkAchievementSharedCommand) error {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return fmt.Errorf("share_achievement: validation failed: %w", err)
	}
	if _, ok := h.catalog.Find(cmd.AchievementID); !ok {
		return fmt.Errorf("share_achievement: %w", shared.ErrAchievementUnknown)
	}

	if err := h.achievementRepo.MarkShared(ctx, userID, cmd.AchievementID); err != nil {
		return fmt.Errorf("share_achievement: %w", err)
	}

	publish(h.eventPublisher, h.log, shared.NewAchievementSharedEvent(userID.String(), cmd.AchievementID))
	return nil
}

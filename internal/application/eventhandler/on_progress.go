package eventhandler

import (
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESS HANDLER
// Writes one structured log line per milestone (level up, unlocked or
// shared achievement, completed goal, confirmed email). These lines are
// the audit trail of gamification; delivery to the user happens elsewhere.
// ═══════════════════════════════════════════════════════════════════════════

// OnProgressHandler logs milestones.
type OnProgressHandler struct {
	log *logger.Logger
}

// NewOnProgressHandler creates the handler.
func NewOnProgressHandler(log *logger.Logger) *OnProgressHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnProgressHandler{log: log.With(logger.Component("on_progress"))}
}

// Register subscribes the handler to milestone events.
func (h *OnProgressHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventLevelUp,
		shared.EventAchievementUnlocked,
		shared.EventAchievementShared,
		shared.EventGoalCompleted,
		shared.EventVerificationConfirmed,
	} {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle implements shared.EventHandler.
func (h *OnProgressHandler) Handle(event shared.Event) error {
	p := event.Payload()
	fields := []logger.Field{
		logger.EventType(string(event.EventType())),
		logger.Time("occurred_at", event.OccurredAt()),
	}

	switch event.EventType() {
	case shared.EventLevelUp:
		h.log.Info("level up", append(fields,
			logger.UserID(userIDOf(event)),
			logger.Int("old_level", intOf(p, "old_level")),
			logger.Int("new_level", intOf(p, "new_level")),
			logger.XPAmount(intOf(p, "total_xp")),
		)...)
	case shared.EventAchievementUnlocked:
		h.log.Info("achievement unlocked", append(fields,
			logger.UserID(userIDOf(event)),
			logger.AchievementID(stringOf(p, "achievement_id")),
			logger.String("rarity", stringOf(p, "rarity")),
			logger.XPAmount(intOf(p, "xp_reward")),
		)...)
	case shared.EventAchievementShared:
		h.log.Info("achievement shared", append(fields,
			logger.UserID(userIDOf(event)),
			logger.AchievementID(stringOf(p, "achievement_id")),
		)...)
	case shared.EventGoalCompleted:
		h.log.Info("goal completed", append(fields,
			logger.UserID(userIDOf(event)),
			logger.GoalID(stringOf(p, "goal_id")),
		)...)
	case shared.EventVerificationConfirmed:
		h.log.Info("email verified", append(fields, logger.Email(stringOf(p, "email")))...)
	default:
		h.log.Debug("ignored event", fields...)
	}
	return nil
}

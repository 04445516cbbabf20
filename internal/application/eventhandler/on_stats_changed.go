package eventhandler

import (
	"context"
	"time"

	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STATS CHANGED HANDLER
// Drops the cached stats snapshot of a user whenever something that feeds
// it changes. The cache decorator already invalidates on its own writes;
// this handler covers writes made by other instances and by the worker.
// ═══════════════════════════════════════════════════════════════════════════

// StatsCache is the part of the stats cache this handler needs.
type StatsCache interface {
	Invalidate(ctx context.Context, userID shared.UserID) error
}

// statsChangingEvents are the event types after which a snapshot is stale.
var statsChangingEvents = []shared.EventType{
	shared.EventActivityRecorded,
	shared.EventAchievementUnlocked,
	shared.EventLevelUp,
	shared.EventStatsRecomputed,
	shared.EventGoalCompleted,
}

// OnStatsChangedHandler invalidates cached stats.
type OnStatsChangedHandler struct {
	cache   StatsCache
	log     *logger.Logger
	timeout time.Duration
}

// NewOnStatsChangedHandler creates the handler.
func NewOnStatsChangedHandler(cache StatsCache, log *logger.Logger) *OnStatsChangedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnStatsChangedHandler{
		cache:   cache,
		log:     log.With(logger.Component("on_stats_changed")),
		timeout: 2 * time.Second,
	}
}

// Register subscribes the handler to every stats-changing event.
func (h *OnStatsChangedHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range statsChangingEvents {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle implements shared.EventHandler.
func (h *OnStatsChangedHandler) Handle(event shared.Event) error {
	userID, err := shared.NewUserID(userIDOf(event))
	if err != nil {
		h.log.Warn("event without user id", logger.EventType(string(event.EventType())))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.Invalidate(ctx, userID); err != nil {
		h.log.Warn("failed to invalidate stats cache",
			logger.UserID(userID.String()),
			logger.EventType(string(event.EventType())),
			logger.Err(err),
		)
		return err
	}
	return nil
}

package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant
// that happened while recording user progress.
const (
	// Activity events
	EventActivityRecorded EventType = "activity.recorded"

	// Progress events
	EventXPGained            EventType = "progress.xp_gained"
	EventLevelUp             EventType = "progress.level_up"
	EventAchievementUnlocked EventType = "progress.achievement_unlocked"
	EventAchievementShared   EventType = "progress.achievement_shared"
	EventStatsRecomputed     EventType = "progress.stats_recomputed"

	// Goal events
	EventGoalCreated   EventType = "goal.created"
	EventGoalCompleted EventType = "goal.completed"

	// Verification events
	EventVerificationRequested EventType = "verification.requested"
	EventVerificationConfirmed EventType = "verification.confirmed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityRecordedEvent is emitted after an activity has been persisted.
type ActivityRecordedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	ActivityID string `json:"activity_id"`
	Category   string `json:"category"`
	XPEarned   int    `json:"xp_earned"`
}

// Payload implements Event interface.
func (e ActivityRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"activity_id": e.ActivityID,
		"category":    e.Category,
		"xp_earned":   e.XPEarned,
	}
}

// NewActivityRecordedEvent creates a new ActivityRecordedEvent.
func NewActivityRecordedEvent(userID, activityID, category string, xpEarned int) ActivityRecordedEvent {
	return ActivityRecordedEvent{
		BaseEvent:  NewBaseEvent(EventActivityRecorded, userID),
		UserID:     userID,
		ActivityID: activityID,
		Category:   category,
		XPEarned:   xpEarned,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// LevelUpEvent is emitted when total XP crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	TotalXP  int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"total_xp":  e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel, totalXP int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// AchievementUnlockedEvent is emitted once per newly earned achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	Rarity        string `json:"rarity"`
	XPReward      int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"rarity":         e.Rarity,
		"xp_reward":      e.XPReward,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, rarity string, xpReward int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:        userID,
		AchievementID: achievementID,
		Rarity:        rarity,
		XPReward:      xpReward,
	}
}

// AchievementSharedEvent is emitted when the user shares an earned achievement.
type AchievementSharedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
}

// Payload implements Event interface.
func (e AchievementSharedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
	}
}

// NewAchievementSharedEvent creates a new AchievementSharedEvent.
func NewAchievementSharedEvent(userID, achievementID string) AchievementSharedEvent {
	return AchievementSharedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementShared, userID),
		UserID:        userID,
		AchievementID: achievementID,
	}
}

// StatsRecomputedEvent is emitted after a full stats reconciliation.
type StatsRecomputedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	TotalXP int    `json:"total_xp"`
	Level   int    `json:"level"`
}

// Payload implements Event interface.
func (e StatsRecomputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"total_xp": e.TotalXP,
		"level":    e.Level,
	}
}

// NewStatsRecomputedEvent creates a new StatsRecomputedEvent.
func NewStatsRecomputedEvent(userID string, totalXP, level int) StatsRecomputedEvent {
	return StatsRecomputedEvent{
		BaseEvent: NewBaseEvent(EventStatsRecomputed, userID),
		UserID:    userID,
		TotalXP:   totalXP,
		Level:     level,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Goal Events
// ═══════════════════════════════════════════════════════════════════════════

// GoalCreatedEvent is emitted when a user creates a goal.
type GoalCreatedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	GoalID string `json:"goal_id"`
	Period string `json:"period"`
}

// Payload implements Event interface.
func (e GoalCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"goal_id": e.GoalID,
		"period":  e.Period,
	}
}

// NewGoalCreatedEvent creates a new GoalCreatedEvent.
func NewGoalCreatedEvent(userID, goalID, period string) GoalCreatedEvent {
	return GoalCreatedEvent{
		BaseEvent: NewBaseEvent(EventGoalCreated, goalID),
		UserID:    userID,
		GoalID:    goalID,
		Period:    period,
	}
}

// GoalCompletedEvent is emitted the first time a goal's derived progress reaches its target.
type GoalCompletedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	GoalID string `json:"goal_id"`
}

// Payload implements Event interface.
func (e GoalCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"goal_id": e.GoalID,
	}
}

// NewGoalCompletedEvent creates a new GoalCompletedEvent.
func NewGoalCompletedEvent(userID, goalID string) GoalCompletedEvent {
	return GoalCompletedEvent{
		BaseEvent: NewBaseEvent(EventGoalCompleted, goalID),
		UserID:    userID,
		GoalID:    goalID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Verification Events
// ═══════════════════════════════════════════════════════════════════════════

// VerificationRequestedEvent is emitted when a PIN is issued for an email.
// The PIN itself is never part of the event.
type VerificationRequestedEvent struct {
	BaseEvent
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Payload implements Event interface.
func (e VerificationRequestedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":      e.Email,
		"expires_at": e.ExpiresAt,
	}
}

// NewVerificationRequestedEvent creates a new VerificationRequestedEvent.
func NewVerificationRequestedEvent(email string, expiresAt time.Time) VerificationRequestedEvent {
	return VerificationRequestedEvent{
		BaseEvent: NewBaseEvent(EventVerificationRequested, email),
		Email:     email,
		ExpiresAt: expiresAt,
	}
}

// VerificationConfirmedEvent is emitted after a PIN has been confirmed.
type VerificationConfirmedEvent struct {
	BaseEvent
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Payload implements Event interface.
func (e VerificationConfirmedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":     e.Email,
		"full_name": e.FullName,
	}
}

// NewVerificationConfirmedEvent creates a new VerificationConfirmedEvent.
func NewVerificationConfirmedEvent(email, fullName string) VerificationConfirmedEvent {
	return VerificationConfirmedEvent{
		BaseEvent: NewBaseEvent(EventVerificationConfirmed, email),
		Email:     email,
		FullName:  fullName,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

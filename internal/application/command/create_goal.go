package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/goal"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/logger"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE GOAL COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SubGoalInput is one sub-goal of a new goal.
type SubGoalInput struct {
	Name        string
	Description string
	TargetCount int
}

// CreateGoalCommand contains the data to create a goal.
type CreateGoalCommand struct {
	UserID      string
	Title       string
	Description string
	Category    string
	Period      string // monthly or yearly
	TargetCount int
	SubGoals    []SubGoalInput

	CorrelationID string
}

// CreateGoalHandler handles the CreateGoalCommand.
type CreateGoalHandler struct {
	goalRepo       goal.Repository
	eventPublisher shared.EventPublisher
	clock          timeutil.Clock
	newID          func() string
	log            *logger.Logger
}

// NewCreateGoalHandler creates a new CreateGoalHandler.
func NewCreateGoalHandler(goalRepo goal.Repository, eventPublisher shared.EventPublisher, clock timeutil.Clock, log *logger.Logger) *CreateGoalHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CreateGoalHandler{
		goalRepo:       goalRepo,
		eventPublisher: eventPublisher,
		clock:          clock,
		newID:          uuid.NewString,
		log:            log.With(logger.Component("create_goal")),
	}
}

// WithIDGenerator replaces the uuid generator, for deterministic tests.
func (h *CreateGoalHandler) WithIDGenerator(newID func() string) *CreateGoalHandler {
	h.newID = newID
	return h
}

// Handle validates and persists a new goal.
func (h *CreateGoalHandler) Handle(ctx context.Context, cmd CreateGoalCommand) (*goal.Goal, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("create_goal: validation failed: %w", err)
	}
	category, err := activity.ParseCategory(cmd.Category)
	if err != nil {
		return nil, fmt.Errorf("create_goal: validation failed: %w", err)
	}

	subGoals := make([]goal.SubGoalParams, 0, len(cmd.SubGoals))
	for _, sg := range cmd.SubGoals {
		subGoals = append(subGoals, goal.SubGoalParams{
			Name:        sg.Name,
			Description: sg.Description,
			TargetCount: sg.TargetCount,
		})
	}

	g, err := goal.NewGoal(goal.NewGoalParams{
		ID:          goal.ID(h.newID()),
		UserID:      userID,
		Title:       cmd.Title,
		Description: cmd.Description,
		Category:    category,
		Period:      goal.Period(strings.ToLower(strings.TrimSpace(cmd.Period))),
		TargetCount: cmd.TargetCount,
		SubGoals:    subGoals,
		CreatedAt:   h.clock.Now(),
	}, h.newID)
	if err != nil {
		return nil, fmt.Errorf("create_goal: validation failed: %w", err)
	}

	if err := h.goalRepo.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("create_goal: failed to save goal: %w", err)
	}

	event := shared.NewGoalCreatedEvent(userID.String(), string(g.ID), string(g.Period))
	event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	publish(h.eventPublisher, h.log, event)

	logger.FromContextOr(ctx, h.log).Info("goal created",
		logger.UserID(userID.String()),
		logger.GoalID(string(g.ID)),
		logger.Int("sub_goals", len(g.SubGoals)),
	)

	return g, nil
}

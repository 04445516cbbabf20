package query

import (
	"context"
	"fmt"
	"time"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/goal"
	"github.com/grithabit/grithabit/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST GOAL PROGRESS QUERY
// Every goal of the user with its progress derived from the activity log
// at read time. Nothing here is stored.
// ══════════════════════════════════════════════════════════════════════════════

// ListGoalProgressQuery selects whose goals to show.
type ListGoalProgressQuery struct {
	UserID string
}

// SubGoalProgressDTO is the derived state of one sub-goal.
type SubGoalProgressDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TargetCount int    `json:"target_count"`
	Count       int    `json:"count"`
	Percentage  int    `json:"percentage"`
	Completed   bool   `json:"is_completed"`
}

// GoalProgressDTO is a goal together with its derived progress.
type GoalProgressDTO struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Category    string               `json:"category"`
	Period      string               `json:"period"`
	TargetCount int                  `json:"target_count"`
	Count       int                  `json:"count"`
	Percentage  int                  `json:"percentage"`
	Reached     bool                 `json:"reached"`
	PeriodStart time.Time            `json:"period_start"`
	PeriodEnd   time.Time            `json:"period_end"`
	SubGoals    []SubGoalProgressDTO `json:"sub_goals"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// NewGoalProgressDTO converts derived progress.
func NewGoalProgressDTO(p goal.Progress, periodEnd time.Time) GoalProgressDTO {
	g := p.Goal
	dto := GoalProgressDTO{
		ID:          g.ID.String(),
		Title:       g.Title,
		Description: g.Description,
		Category:    g.Category.String(),
		Period:      string(g.Period),
		TargetCount: g.TargetCount,
		Count:       p.Count,
		Percentage:  p.Percentage,
		Reached:     p.Reached,
		PeriodStart: p.PeriodStart,
		PeriodEnd:   periodEnd,
		SubGoals:    make([]SubGoalProgressDTO, 0, len(p.SubGoals)),
		CompletedAt: g.CompletedAt,
		CreatedAt:   g.CreatedAt,
	}
	for _, sp := range p.SubGoals {
		dto.SubGoals = append(dto.SubGoals, SubGoalProgressDTO{
			ID:          sp.SubGoal.ID,
			Name:        sp.SubGoal.Name,
			Description: sp.SubGoal.Description,
			TargetCount: sp.SubGoal.TargetCount,
			Count:       sp.Count,
			Percentage:  sp.Percentage,
			Completed:   sp.Reached,
		})
	}
	return dto
}

// ListGoalProgressResult lists goals, newest first.
type ListGoalProgressResult struct {
	Goals     []GoalProgressDTO `json:"goals"`
	Completed int               `json:"completed"`
}

// ListGoalProgressHandler handles ListGoalProgressQuery.
type ListGoalProgressHandler struct {
	goalRepo     goal.Repository
	activityRepo activity.Repository
	config       Config
}

// NewListGoalProgressHandler creates a new handler.
func NewListGoalProgressHandler(goalRepo goal.Repository, activityRepo activity.Repository, config Config) *ListGoalProgressHandler {
	return &ListGoalProgressHandler{
		goalRepo:     goalRepo,
		activityRepo: activityRepo,
		config:       config.withDefaults(),
	}
}

// Handle derives progress for every goal of the user.
func (h *ListGoalProgressHandler) Handle(ctx context.Context, q ListGoalProgressQuery) (*ListGoalProgressResult, error) {
	userID, err := parseUserID("ListGoalProgress", q.UserID)
	if err != nil {
		return nil, err
	}

	goals, err := h.goalRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	result := &ListGoalProgressResult{Goals: make([]GoalProgressDTO, 0, len(goals))}
	if len(goals) == 0 {
		return result, nil
	}

	// Sub-goal counts span the whole history, so the full log is needed.
	activities, err := h.activityRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	now := h.config.Clock.Now()
	loc := h.config.Location
	for _, g := range goals {
		p := goal.CalculateProgress(g, activities, now, loc)
		result.Goals = append(result.Goals, NewGoalProgressDTO(p, g.Period.End(now, loc)))
		if g.IsCompleted() {
			result.Completed++
		}
	}

	logger.FromContextOr(ctx, h.config.Logger).Debug("goal progress listed",
		logger.UserID(userID.String()), logger.Int("goals", len(goals)))
	return result, nil
}

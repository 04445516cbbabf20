package query

import (
	"context"
	"fmt"
	"time"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/gamification"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ACTIVITIES QUERY
// The user's activity log, newest first, with the XP each entry earned.
// ══════════════════════════════════════════════════════════════════════════════

// Paging limits.
const (
	DefaultActivitiesLimit = 50
	MaxActivitiesLimit     = 200
)

// ListActivitiesQuery selects a page of the log.
type ListActivitiesQuery struct {
	UserID string

	// Category filters by category; empty means all.
	Category string

	Limit  int
	Offset int
}

// Validate normalizes paging and the category filter.
func (q *ListActivitiesQuery) Validate() error {
	if q.Limit <= 0 {
		q.Limit = DefaultActivitiesLimit
	}
	if q.Limit > MaxActivitiesLimit {
		q.Limit = MaxActivitiesLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Category != "" {
		c, err := activity.ParseCategory(q.Category)
		if err != nil {
			return err
		}
		q.Category = c.String()
	}
	return nil
}

// ActivityDTO is the read model of an activity.
type ActivityDTO struct {
	ID                  string          `json:"id"`
	Category            string          `json:"category"`
	Description         string          `json:"description"`
	Detail              activity.Detail `json:"detail"`
	DurationMinutes     *int            `json:"duration_minutes,omitempty"`
	GoalID              string          `json:"goal_id,omitempty"`
	SubGoalID           string          `json:"sub_goal_id,omitempty"`
	GoalProgressPercent *int            `json:"goal_progress_percentage,omitempty"`
	XP                  int             `json:"xp"`
	Timestamp           time.Time       `json:"timestamp"`
	CreatedAt           time.Time       `json:"created_at"`
}

// NewActivityDTO converts an activity.
func NewActivityDTO(a *activity.Activity) ActivityDTO {
	return ActivityDTO{
		ID:                  a.ID.String(),
		Category:            a.Category.String(),
		Description:         a.Description,
		Detail:              a.Detail,
		DurationMinutes:     a.DurationMinutes,
		GoalID:              a.GoalID,
		SubGoalID:           a.SubGoalID,
		GoalProgressPercent: a.GoalProgressPercent,
		XP:                  gamification.ActivityXP(a),
		Timestamp:           a.Timestamp,
		CreatedAt:           a.CreatedAt,
	}
}

// ListActivitiesResult is one page of the log.
type ListActivitiesResult struct {
	Activities []ActivityDTO `json:"activities"`
	Total      int           `json:"total"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}

// ListActivitiesHandler handles ListActivitiesQuery.
type ListActivitiesHandler struct {
	activityRepo activity.Repository
}

// NewListActivitiesHandler creates a new handler.
func NewListActivitiesHandler(activityRepo activity.Repository) *ListActivitiesHandler {
	return &ListActivitiesHandler{activityRepo: activityRepo}
}

// Handle returns a page of activities, newest first.
func (h *ListActivitiesHandler) Handle(ctx context.Context, q ListActivitiesQuery) (*ListActivitiesResult, error) {
	userID, err := parseUserID("ListActivities", q.UserID)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	all, err := h.activityRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	if q.Category != "" {
		filtered := all[:0:0]
		for _, a := range all {
			if a.Category.String() == q.Category {
				filtered = append(filtered, a)
			}
		}
		all = filtered
	}

	result := &ListActivitiesResult{
		Activities: []ActivityDTO{},
		Total:      len(all),
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if q.Offset >= len(all) {
		return result, nil
	}
	end := q.Offset + q.Limit
	if end > len(all) {
		end = len(all)
	}
	for _, a := range all[q.Offset:end] {
		result.Activities = append(result.Activities, NewActivityDTO(a))
	}
	return result, nil
}

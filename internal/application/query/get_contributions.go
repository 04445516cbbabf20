package query

import (
	"context"
	"fmt"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CONTRIBUTIONS QUERY
// Per-day activity counts for the calendar heat map. Every day in the
// window is present, oldest first, with zero for days without activity.
// ══════════════════════════════════════════════════════════════════════════════

// Supported window sizes.
const (
	ContributionsWeek  = 7
	ContributionsMonth = 30
	ContributionsYear  = 365
)

// GetContributionsQuery selects the user and window size.
type GetContributionsQuery struct {
	UserID string

	// Days is one of 7, 30 or 365. Zero means a year.
	Days int
}

// Validate checks the window size.
func (q *GetContributionsQuery) Validate() error {
	if q.Days == 0 {
		q.Days = ContributionsYear
	}
	switch q.Days {
	case ContributionsWeek, ContributionsMonth, ContributionsYear:
		return nil
	}
	return fmt.Errorf("days must be one of %d, %d or %d", ContributionsWeek, ContributionsMonth, ContributionsYear)
}

// ContributionDTO is the activity count of one calendar date.
type ContributionDTO struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// GetContributionsResult is the heat-map payload.
type GetContributionsResult struct {
	Days          int               `json:"days"`
	Contributions []ContributionDTO `json:"contributions"`
	Total         int               `json:"total"`
	ActiveDays    int               `json:"active_days"`
}

// GetContributionsHandler handles GetContributionsQuery.
type GetContributionsHandler struct {
	activityRepo activity.Repository
	config       Config
}

// NewGetContributionsHandler creates a new handler.
func NewGetContributionsHandler(activityRepo activity.Repository, config Config) *GetContributionsHandler {
	return &GetContributionsHandler{activityRepo: activityRepo, config: config.withDefaults()}
}

// Handle counts activities per date of the window ending today.
func (h *GetContributionsHandler) Handle(ctx context.Context, q GetContributionsQuery) (*GetContributionsResult, error) {
	userID, err := parseUserID("GetContributions", q.UserID)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetContributions", shared.ErrValidation, err.Error(), err)
	}

	loc := h.config.Location
	now := h.config.Clock.Now()
	today := timeutil.DayNumber(now, loc)
	first := today - q.Days + 1
	since := timeutil.StartOfDay(now, loc).AddDate(0, 0, -(q.Days - 1))

	activities, err := h.activityRepo.ListByUserSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	counts := make([]int, q.Days)
	for _, a := range activities {
		day := timeutil.DayNumber(a.Timestamp, loc)
		if day < first || day > today {
			continue
		}
		counts[day-first]++
	}

	result := &GetContributionsResult{
		Days:          q.Days,
		Contributions: make([]ContributionDTO, 0, q.Days),
	}
	for i, c := range counts {
		result.Contributions = append(result.Contributions, ContributionDTO{
			Date:  timeutil.DateOf(first + i).Format(timeutil.DateLayout),
			Count: c,
		})
		result.Total += c
		if c > 0 {
			result.ActiveDays++
		}
	}
	return result, nil
}

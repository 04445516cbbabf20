// Package goal contains user-defined periodic targets. Progress is never
// stored on the goal: it is derived at read time from the activity log.
package goal

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// Field limits.
const (
	MaxTitleLength              = 100
	MaxDescriptionLength        = 300
	MaxSubGoalNameLength        = 100
	MaxSubGoalDescriptionLength = 200
)

// ID represents a unique identifier for a goal.
type ID string

// IsValid checks if the goal ID is valid.
func (id ID) IsValid() bool {
	return id != ""
}

// String returns the string representation of ID.
func (id ID) String() string {
	return string(id)
}

// Period is the window a goal's progress is counted over.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// IsValid checks if the period is known.
func (p Period) IsValid() bool {
	return p == PeriodMonthly || p == PeriodYearly
}

// Start returns the beginning of the period containing now, in loc.
func (p Period) Start(now time.Time, loc *time.Location) time.Time {
	if p == PeriodYearly {
		return timeutil.StartOfYear(now, loc)
	}
	return timeutil.StartOfMonth(now, loc)
}

// End returns the exclusive end of the period containing now.
func (p Period) End(now time.Time, loc *time.Location) time.Time {
	if p == PeriodYearly {
		return p.Start(now, loc).AddDate(1, 0, 0)
	}
	return p.Start(now, loc).AddDate(0, 1, 0)
}

// SubGoal is a smaller named target within a goal.
type SubGoal struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TargetCount int    `json:"target_count"`
	Completed   bool   `json:"is_completed"`
}

// Goal is a target count of activities in one category over a period.
type Goal struct {
	ID          ID
	UserID      shared.UserID
	Title       string
	Description string
	Category    activity.Category
	Period      Period
	TargetCount int
	SubGoals    []SubGoal
	CompletedAt *time.Time // nil while the goal is open
	CreatedAt   time.Time
}

// SubGoalParams are the user-supplied fields of a sub-goal.
type SubGoalParams struct {
	Name        string
	Description string
	TargetCount int
}

// NewGoalParams are the user-supplied fields of a goal.
type NewGoalParams struct {
	ID          ID
	UserID      shared.UserID
	Title       string
	Description string
	Category    activity.Category
	Period      Period
	TargetCount int
	SubGoals    []SubGoalParams
	CreatedAt   time.Time
}

// NewGoal validates params and creates a goal. newSubGoalID is called
// once per sub-goal to assign its id.
func NewGoal(p NewGoalParams, newSubGoalID func() string) (*Goal, error) {
	if !p.ID.IsValid() {
		return nil, shared.NewDomainError("goal", "Validate", shared.ErrInvalidID, "goal ID is required")
	}
	if !p.UserID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}

	title := strings.TrimSpace(p.Title)
	if n := utf8.RuneCountInString(title); n == 0 || n > MaxTitleLength {
		return nil, shared.ErrInvalidGoalTitle
	}
	description := strings.TrimSpace(p.Description)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, shared.ErrInvalidGoalDesc
	}
	if !p.Category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}
	if !p.Period.IsValid() {
		return nil, shared.ErrInvalidGoalPeriod
	}
	if p.TargetCount < 1 {
		return nil, shared.ErrInvalidGoalTarget
	}
	if len(p.SubGoals) == 0 {
		return nil, shared.ErrNoSubGoals
	}

	subGoals := make([]SubGoal, 0, len(p.SubGoals))
	for _, sp := range p.SubGoals {
		name := strings.TrimSpace(sp.Name)
		if n := utf8.RuneCountInString(name); n == 0 || n > MaxSubGoalNameLength {
			return nil, shared.ErrInvalidSubGoalName
		}
		subDesc := strings.TrimSpace(sp.Description)
		if utf8.RuneCountInString(subDesc) > MaxSubGoalDescriptionLength {
			return nil, shared.ErrInvalidSubGoalDesc
		}
		if sp.TargetCount < 1 {
			return nil, shared.ErrInvalidGoalTarget
		}
		subGoals = append(subGoals, SubGoal{
			ID:          newSubGoalID(),
			Name:        name,
			Description: subDesc,
			TargetCount: sp.TargetCount,
		})
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &Goal{
		ID:          p.ID,
		UserID:      p.UserID,
		Title:       title,
		Description: description,
		Category:    p.Category,
		Period:      p.Period,
		TargetCount: p.TargetCount,
		SubGoals:    subGoals,
		CreatedAt:   createdAt,
	}, nil
}

// IsCompleted reports whether the goal has been marked completed.
func (g *Goal) IsCompleted() bool {
	return g.CompletedAt != nil
}

// HasSubGoal checks if the goal contains a sub-goal id.
func (g *Goal) HasSubGoal(id string) bool {
	for _, sg := range g.SubGoals {
		if sg.ID == id {
			return true
		}
	}
	return false
}

// MarkCompleted records completion. It reports false if the goal was
// already completed.
func (g *Goal) MarkCompleted(at time.Time) bool {
	if g.CompletedAt != nil {
		return false
	}
	g.CompletedAt = &at
	return true
}

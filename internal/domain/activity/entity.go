// Package activity contains the activity log entry: one unit of user effort
// in a category, with optional structured detail and goal linkage.
// This is a pure domain layer with zero external dependencies.
package activity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/grithabit/grithabit/internal/domain/shared"
)

// Field limits enforced before an activity enters the gamification core.
const (
	MaxDescriptionLength = 500
	MinDurationMinutes   = 1
	MaxProgressPercent   = 100
)

// ID represents a unique identifier for an activity.
type ID string

// IsValid checks if the activity ID is valid.
func (id ID) IsValid() bool {
	return id != ""
}

// String returns the string representation of ID.
func (id ID) String() string {
	return string(id)
}

// Category is the kind of effort an activity (or goal) belongs to.
type Category string

const (
	CategoryWorkout  Category = "Workout"
	CategoryLearning Category = "Learning"
	CategoryCreating Category = "Creating Something"
)

// Categories lists all known categories in display order.
var Categories = []Category{CategoryWorkout, CategoryLearning, CategoryCreating}

// IsValid checks if the category is one of the known values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryWorkout, CategoryLearning, CategoryCreating:
		return true
	}
	return false
}

// String returns the string representation of Category.
func (c Category) String() string {
	return string(c)
}

// ParseCategory accepts the canonical names plus a few spellings that
// clients commonly send ("workout", "CreatingSomething", "creating").
func ParseCategory(s string) (Category, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch normalized {
	case "workout":
		return CategoryWorkout, nil
	case "learning":
		return CategoryLearning, nil
	case "creatingsomething", "creating":
		return CategoryCreating, nil
	}
	return "", shared.ErrInvalidCategory
}

// DetailKind is the shape of an activity's structured detail.
type DetailKind string

const (
	DetailSimple   DetailKind = "simple"
	DetailLink     DetailKind = "link"
	DetailMultiple DetailKind = "multiple"
)

// ProgressItem is one measured item of a "multiple" detail, e.g. {Push-ups, 30, reps}.
type ProgressItem struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Detail is the free-form structured part of an activity.
// Link is set for DetailLink, Items for DetailMultiple.
type Detail struct {
	Kind  DetailKind     `json:"type"`
	Link  string         `json:"link,omitempty"`
	Items []ProgressItem `json:"items,omitempty"`
}

// Validate checks the detail is consistent with its kind.
// An empty kind is treated as DetailSimple.
func (d Detail) Validate() error {
	switch d.normalizedKind() {
	case DetailSimple:
		return nil
	case DetailLink:
		if strings.TrimSpace(d.Link) == "" {
			return shared.ErrInvalidDetail
		}
		return nil
	case DetailMultiple:
		if len(d.Items) == 0 {
			return shared.ErrInvalidDetail
		}
		for _, item := range d.Items {
			if strings.TrimSpace(item.Name) == "" {
				return shared.ErrInvalidDetail
			}
		}
		return nil
	default:
		return shared.ErrInvalidDetail
	}
}

// IsMultiple reports whether the detail is the multi-item kind.
func (d Detail) IsMultiple() bool {
	return d.normalizedKind() == DetailMultiple
}

func (d Detail) normalizedKind() DetailKind {
	if d.Kind == "" {
		return DetailSimple
	}
	return d.Kind
}

// Activity is an immutable log entry of one unit of user effort.
// Timestamp is when the effort happened and is supplied by the user;
// CreatedAt is when it was recorded.
type Activity struct {
	ID                  ID
	UserID              shared.UserID
	Category            Category
	Description         string
	Detail              Detail
	DurationMinutes     *int   // nil when not tracked
	GoalID              string // empty when not linked
	SubGoalID           string
	GoalProgressPercent *int
	Timestamp           time.Time
	CreatedAt           time.Time
}

// NewActivityParams holds the user-supplied attributes of a new activity.
type NewActivityParams struct {
	ID                  ID
	UserID              shared.UserID
	Category            Category
	Description         string
	Detail              Detail
	DurationMinutes     *int
	GoalID              string
	SubGoalID           string
	GoalProgressPercent *int
	Timestamp           time.Time
	CreatedAt           time.Time
}

// NewActivity validates params and creates an activity.
func NewActivity(p NewActivityParams) (*Activity, error) {
	if !p.ID.IsValid() {
		return nil, shared.NewDomainError("activity", "Validate", shared.ErrInvalidID, "activity ID is required")
	}
	if !p.UserID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if !p.Category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}

	description := strings.TrimSpace(p.Description)
	if n := utf8.RuneCountInString(description); n == 0 || n > MaxDescriptionLength {
		return nil, shared.ErrInvalidDescription
	}
	if err := p.Detail.Validate(); err != nil {
		return nil, err
	}
	if p.DurationMinutes != nil && *p.DurationMinutes < MinDurationMinutes {
		return nil, shared.ErrInvalidDuration
	}
	if p.GoalProgressPercent != nil && (*p.GoalProgressPercent < 0 || *p.GoalProgressPercent > MaxProgressPercent) {
		return nil, shared.ErrInvalidProgressPercent
	}
	if p.SubGoalID != "" && p.GoalID == "" {
		return nil, shared.NewDomainError("activity", "Validate", shared.ErrInvalidInput, "sub-goal requires a goal")
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	timestamp := p.Timestamp
	if timestamp.IsZero() {
		timestamp = createdAt
	}

	detail := p.Detail
	detail.Kind = detail.normalizedKind()

	return &Activity{
		ID:                  p.ID,
		UserID:              p.UserID,
		Category:            p.Category,
		Description:         description,
		Detail:              detail,
		DurationMinutes:     p.DurationMinutes,
		GoalID:              p.GoalID,
		SubGoalID:           p.SubGoalID,
		GoalProgressPercent: p.GoalProgressPercent,
		Timestamp:           timestamp,
		CreatedAt:           createdAt,
	}, nil
}

// Duration returns the tracked duration in minutes, or 0.
func (a *Activity) Duration() int {
	if a.DurationMinutes == nil {
		return 0
	}
	return *a.DurationMinutes
}

// IsGoalLinked reports whether the activity references a goal.
func (a *Activity) IsGoalLinked() bool {
	return a.GoalID != ""
}

// Timestamps extracts the performed-at times of a list of activities.
func Timestamps(activities []*Activity) []time.Time {
	out := make([]time.Time, 0, len(activities))
	for _, a := range activities {
		out = append(out, a.Timestamp)
	}
	return out
}

// CountByCategory counts activities per category.
func CountByCategory(activities []*Activity) map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, a := range activities {
		counts[a.Category]++
	}
	return counts
}

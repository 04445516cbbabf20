package gamification

import (
	"github.com/grithabit/grithabit/internal/domain/activity"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Tag groups achievements for display and decides which counter an
// uncategorised count criterion reads.
type Tag string

const (
	TagActivity Tag = "activity"
	TagStreak   Tag = "streak"
	TagGoal     Tag = "goal"
	TagSocial   Tag = "social"
	TagSpecial  Tag = "special"
)

// Rarity is a display tier.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// CriteriaKind names the eligibility rule of an achievement.
type CriteriaKind string

const (
	CriteriaCount  CriteriaKind = "count"
	CriteriaStreak CriteriaKind = "streak"
)

// Criteria is the eligibility rule of an achievement. The concrete types
// are CountCriteria, StreakCriteria and UnsupportedCriteria; the evaluator
// switches over them and treats anything else as never satisfied.
type Criteria interface {
	Kind() CriteriaKind
	Threshold() int
}

// CountCriteria is satisfied when a counter reaches Target. With a
// Category it reads that category's counter; without one it reads
// goals_completed for goal-tagged achievements and total_activities otherwise.
type CountCriteria struct {
	Target   int
	Category activity.Category
}

// Kind implements Criteria.
func (CountCriteria) Kind() CriteriaKind { return CriteriaCount }

// Threshold implements Criteria.
func (c CountCriteria) Threshold() int { return c.Target }

// StreakCriteria is satisfied when either the current or the longest
// streak reaches Target.
type StreakCriteria struct {
	Target int
}

// Kind implements Criteria.
func (StreakCriteria) Kind() CriteriaKind { return CriteriaStreak }

// Threshold implements Criteria.
func (c StreakCriteria) Threshold() int { return c.Target }

// UnsupportedCriteria carries a rule kind this build cannot evaluate
// (e.g. "percentage" or "time"). It keeps the catalog loadable.
type UnsupportedCriteria struct {
	Name   string
	Target int
}

// Kind implements Criteria.
func (c UnsupportedCriteria) Kind() CriteriaKind { return CriteriaKind(c.Name) }

// Threshold implements Criteria.
func (c UnsupportedCriteria) Threshold() int { return c.Target }

// ParseCriteria builds a Criteria from its serialized form. Unknown kinds
// become UnsupportedCriteria rather than an error.
func ParseCriteria(kind string, target int, category string) Criteria {
	switch CriteriaKind(kind) {
	case CriteriaCount:
		c := CountCriteria{Target: target}
		if category != "" {
			c.Category = activity.Category(category)
		}
		return c
	case CriteriaStreak:
		return StreakCriteria{Target: target}
	default:
		return UnsupportedCriteria{Name: kind, Target: target}
	}
}

// Achievement is an immutable catalog entry.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Tag         Tag
	Rarity      Rarity
	XPReward    int
	Criteria    Criteria
}

// CriteriaCategory returns the category filter of a count criterion, if any.
func (a Achievement) CriteriaCategory() activity.Category {
	if c, ok := a.Criteria.(CountCriteria); ok {
		return c.Category
	}
	return ""
}

// Catalog is an ordered, read-only list of achievements.
type Catalog struct {
	items []Achievement
	byID  map[string]int
}

// NewCatalog indexes achievements. Duplicate ids keep the first entry.
func NewCatalog(items []Achievement) *Catalog {
	c := &Catalog{
		items: make([]Achievement, 0, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	for _, a := range items {
		if _, dup := c.byID[a.ID]; dup {
			continue
		}
		c.byID[a.ID] = len(c.items)
		c.items = append(c.items, a)
	}
	return c
}

// All returns a copy of the catalog in definition order.
func (c *Catalog) All() []Achievement {
	out := make([]Achievement, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of achievements.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Find returns the achievement with the given id.
func (c *Catalog) Find(id string) (Achievement, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Achievement{}, false
	}
	return c.items[i], true
}

// RewardFor returns the XP reward of an achievement id, 0 if unknown.
func (c *Catalog) RewardFor(id string) int {
	if a, ok := c.Find(id); ok {
		return a.XPReward
	}
	return 0
}

// DefaultCatalog returns the built-in achievement set.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultAchievements)
}

var defaultAchievements = []Achievement{
	// Beginner
	{
		ID:          "first-step",
		Name:        "First Steps",
		Description: "Complete your very first activity",
		Icon:        "🎯",
		Tag:         TagActivity,
		Rarity:      RarityCommon,
		XPReward:    50,
		Criteria:    CountCriteria{Target: 1},
	},
	{
		ID:          "goal-setter",
		Name:        "Goal Setter",
		Description: "Create your first goal",
		Icon:        "🎪",
		Tag:         TagGoal,
		Rarity:      RarityCommon,
		XPReward:    25,
		Criteria:    CountCriteria{Target: 1},
	},

	// Per category
	{
		ID:          "learning-machine",
		Name:        "Learning Machine",
		Description: "Complete 10 learning activities",
		Icon:        "🧠",
		Tag:         TagActivity,
		Rarity:      RarityCommon,
		XPReward:    100,
		Criteria:    CountCriteria{Target: 10, Category: activity.CategoryLearning},
	},
	{
		ID:          "fitness-warrior",
		Name:        "Fitness Warrior",
		Description: "Complete 10 workout activities",
		Icon:        "💪",
		Tag:         TagActivity,
		Rarity:      RarityCommon,
		XPReward:    100,
		Criteria:    CountCriteria{Target: 10, Category: activity.CategoryWorkout},
	},
	{
		ID:          "creator-spirit",
		Name:        "Creator Spirit",
		Description: "Complete 10 creative activities",
		Icon:        "🎨",
		Tag:         TagActivity,
		Rarity:      RarityCommon,
		XPReward:    100,
		Criteria:    CountCriteria{Target: 10, Category: activity.CategoryCreating},
	},

	// Streaks
	{
		ID:          "streak-starter",
		Name:        "Streak Starter",
		Description: "Maintain a 7-day activity streak",
		Icon:        "🔥",
		Tag:         TagStreak,
		Rarity:      RarityRare,
		XPReward:    200,
		Criteria:    StreakCriteria{Target: 7},
	},
	{
		ID:          "streak-master",
		Name:        "Streak Master",
		Description: "Maintain a 30-day activity streak",
		Icon:        "⚡",
		Tag:         TagStreak,
		Rarity:      RarityEpic,
		XPReward:    500,
		Criteria:    StreakCriteria{Target: 30},
	},

	// Goals
	{
		ID:          "goal-crusher",
		Name:        "Goal Crusher",
		Description: "Complete your first goal",
		Icon:        "🏆",
		Tag:         TagGoal,
		Rarity:      RarityRare,
		XPReward:    300,
		Criteria:    CountCriteria{Target: 1},
	},
	{
		ID:          "goal-machine",
		Name:        "Goal Machine",
		Description: "Complete 5 goals",
		Icon:        "🎖️",
		Tag:         TagGoal,
		Rarity:      RarityEpic,
		XPReward:    750,
		Criteria:    CountCriteria{Target: 5},
	},

	// Volume
	{
		ID:          "busy-bee",
		Name:        "Busy Bee",
		Description: "Complete 50 activities total",
		Icon:        "🐝",
		Tag:         TagActivity,
		Rarity:      RarityRare,
		XPReward:    400,
		Criteria:    CountCriteria{Target: 50},
	},
	{
		ID:          "productivity-master",
		Name:        "Productivity Master",
		Description: "Complete 100 activities total",
		Icon:        "⭐",
		Tag:         TagActivity,
		Rarity:      RarityEpic,
		XPReward:    800,
		Criteria:    CountCriteria{Target: 100},
	},
}

package gamification

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// Evaluator decides which catalog achievements a user newly qualifies for.
type Evaluator struct {
	catalog *Catalog
}

// NewEvaluator creates an evaluator over a catalog.
func NewEvaluator(catalog *Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Catalog returns the catalog the evaluator checks against.
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// Evaluate returns the achievements, in catalog order, that stats satisfy
// and that are not in earned. Ids in earned are never returned.
func (e *Evaluator) Evaluate(stats *UserStats, earned EarnedSet) []Achievement {
	var unlocked []Achievement
	for _, a := range e.catalog.items {
		if earned.Has(a.ID) {
			continue
		}
		if IsSatisfied(a, stats) {
			unlocked = append(unlocked, a)
		}
	}
	return unlocked
}

// IsSatisfied checks a single achievement's criteria against stats.
// Unknown criteria kinds and unknown category filters are never satisfied.
func IsSatisfied(a Achievement, stats *UserStats) bool {
	if stats == nil {
		return false
	}

	switch c := a.Criteria.(type) {
	case CountCriteria:
		if c.Category != "" {
			count, ok := stats.CategoryCount(c.Category)
			return ok && count >= c.Target
		}
		if a.Tag == TagGoal {
			return stats.GoalsCompleted >= c.Target
		}
		return stats.TotalActivities >= c.Target

	case StreakCriteria:
		return stats.CurrentStreak >= c.Target || stats.LongestStreak >= c.Target

	default:
		return false
	}
}

// Progress returns how far stats are towards an achievement, as (value, target).
// Used for "3 / 10" style progress bars; value is capped at target.
func Progress(a Achievement, stats *UserStats) (value, target int) {
	if a.Criteria == nil || stats == nil {
		return 0, 0
	}
	target = a.Criteria.Threshold()

	switch c := a.Criteria.(type) {
	case CountCriteria:
		switch {
		case c.Category != "":
			value, _ = stats.CategoryCount(c.Category)
		case a.Tag == TagGoal:
			value = stats.GoalsCompleted
		default:
			value = stats.TotalActivities
		}
	case StreakCriteria:
		value = stats.CurrentStreak
		if stats.LongestStreak > value {
			value = stats.LongestStreak
		}
	default:
		return 0, target
	}

	if value > target {
		value = target
	}
	return value, target
}

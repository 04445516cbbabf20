// Package gamification implements the scoring rules of the tracker:
// XP per activity, levels, day streaks, the achievement catalog and the
// evaluator that decides which achievements a user has newly unlocked.
//
// Everything here is pure and synchronous; persistence and orchestration
// live in the application layer.
package gamification

import (
	"github.com/grithabit/grithabit/internal/domain/activity"
)

// XP rules.
const (
	BaseActivityXP      = 10
	DurationStepMinutes = 15
	DurationStepXP      = 5
	MaxDurationBonusXP  = 30
	GoalLinkBonusXP     = 10
	DetailedLogBonusXP  = 5

	XPPerLevel = 100
)

// XPInput is the subset of an activity that affects its score.
type XPInput struct {
	DurationMinutes int // 0 when not tracked
	GoalLinked      bool
	MultipleDetail  bool
}

// XPInputFor extracts the scoring attributes of an activity.
func XPInputFor(a *activity.Activity) XPInput {
	return XPInput{
		DurationMinutes: a.Duration(),
		GoalLinked:      a.IsGoalLinked(),
		MultipleDetail:  a.Detail.IsMultiple(),
	}
}

// DurationBonus returns min(floor(minutes/15)*5, 30).
func DurationBonus(minutes int) int {
	if minutes <= 0 {
		return 0
	}
	bonus := (minutes / DurationStepMinutes) * DurationStepXP
	if bonus > MaxDurationBonusXP {
		return MaxDurationBonusXP
	}
	return bonus
}

// CalculateXP scores a single activity. It never fails and never returns
// less than BaseActivityXP.
func CalculateXP(in XPInput) int {
	xp := BaseActivityXP + DurationBonus(in.DurationMinutes)
	if in.GoalLinked {
		xp += GoalLinkBonusXP
	}
	if in.MultipleDetail {
		xp += DetailedLogBonusXP
	}
	return xp
}

// ActivityXP scores a recorded activity.
func ActivityXP(a *activity.Activity) int {
	return CalculateXP(XPInputFor(a))
}

// Level returns floor(xp/100)+1. Negative XP is treated as zero.
func Level(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// XPForNextLevel returns how much XP is missing to reach the next level.
func XPForNextLevel(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return Level(xp)*XPPerLevel - xp
}

// LevelProgress returns the percentage (0-99) of the current level already earned.
func LevelProgress(xp int) int {
	if xp < 0 {
		return 0
	}
	return (xp % XPPerLevel) * 100 / XPPerLevel
}

package gamification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grithabit/grithabit/internal/domain/activity"
)

func ids(list []Achievement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func TestDefaultCatalog_Order(t *testing.T) {
	c := DefaultCatalog()
	require.Equal(t, 11, c.Len())
	assert.Equal(t, []string{
		"first-step", "goal-setter", "learning-machine", "fitness-warrior", "creator-spirit",
		"streak-starter", "streak-master", "goal-crusher", "goal-machine", "busy-bee", "productivity-master",
	}, ids(c.All()))

	a, ok := c.Find("streak-master")
	require.True(t, ok)
	assert.Equal(t, 500, a.XPReward)
	assert.Equal(t, RarityEpic, a.Rarity)
	assert.Equal(t, 0, c.RewardFor("does-not-exist"))
}

func TestEvaluate_FirstActivity(t *testing.T) {
	ev := NewEvaluator(DefaultCatalog())
	stats := &UserStats{TotalActivities: 1, WorkoutCount: 1, CurrentStreak: 1, LongestStreak: 1}

	assert.Equal(t, []string{"first-step"}, ids(ev.Evaluate(stats, EarnedSet{})))
}

func TestEvaluate_SkipsEarned(t *testing.T) {
	ev := NewEvaluator(DefaultCatalog())
	stats := &UserStats{
		TotalActivities: 1000, WorkoutCount: 1000, LearningCount: 1000, CreatingCount: 1000,
		CurrentStreak: 100, LongestStreak: 100, GoalsCompleted: 100,
	}

	earned := EarnedSet{}
	for _, a := range DefaultCatalog().All() {
		earned.Add(a.ID)
	}
	assert.Empty(t, ev.Evaluate(stats, earned))

	delete(earned, "busy-bee")
	assert.Equal(t, []string{"busy-bee"}, ids(ev.Evaluate(stats, earned)))
}

func TestEvaluate_CategoryCounts(t *testing.T) {
	ev := NewEvaluator(DefaultCatalog())
	earned := EarnedSet{"first-step": {}}

	stats := &UserStats{TotalActivities: 19, WorkoutCount: 9, LearningCount: 10}
	assert.Equal(t, []string{"learning-machine"}, ids(ev.Evaluate(stats, earned)))

	stats.WorkoutCount = 10
	stats.CreatingCount = 10
	assert.Equal(t, []string{"learning-machine", "fitness-warrior", "creator-spirit"}, ids(ev.Evaluate(stats, earned)))
}

func TestEvaluate_GoalTagReadsGoalsCompleted(t *testing.T) {
	ev := NewEvaluator(DefaultCatalog())
	earned := EarnedSet{"first-step": {}}

	stats := &UserStats{TotalActivities: 5}
	assert.Empty(t, ev.Evaluate(stats, earned))

	stats.GoalsCompleted = 1
	assert.Equal(t, []string{"goal-setter", "goal-crusher"}, ids(ev.Evaluate(stats, earned)))

	stats.GoalsCompleted = 5
	assert.Equal(t, []string{"goal-setter", "goal-crusher", "goal-machine"}, ids(ev.Evaluate(stats, earned)))
}

func TestEvaluate_StreakUsesLongest(t *testing.T) {
	ev := NewEvaluator(DefaultCatalog())
	stats := &UserStats{TotalActivities: 30, CurrentStreak: 0, LongestStreak: 30}

	got := ids(ev.Evaluate(stats, EarnedSet{"first-step": {}}))
	assert.Equal(t, []string{"streak-starter", "streak-master"}, got)
}

func TestEvaluate_VolumeThresholds(t *testing.T) {
	ev := NewEvaluator(DefaultCatalog())
	earned := EarnedSet{"first-step": {}}

	assert.Equal(t, []string{"busy-bee"}, ids(ev.Evaluate(&UserStats{TotalActivities: 50}, earned)))
	assert.Equal(t, []string{"busy-bee", "productivity-master"}, ids(ev.Evaluate(&UserStats{TotalActivities: 100}, earned)))
}

func TestIsSatisfied_UnknownKindsNeverPass(t *testing.T) {
	stats := &UserStats{TotalActivities: 1000, CurrentStreak: 1000, LongestStreak: 1000}

	pct := Achievement{ID: "perfectionist", Tag: TagSpecial, Criteria: ParseCriteria("percentage", 1, "")}
	assert.False(t, IsSatisfied(pct, stats))

	noCriteria := Achievement{ID: "broken", Tag: TagActivity}
	assert.False(t, IsSatisfied(noCriteria, stats))

	unknownCategory := Achievement{ID: "chef", Tag: TagActivity, Criteria: CountCriteria{Target: 1, Category: "Cooking"}}
	assert.False(t, IsSatisfied(unknownCategory, stats))
}

func TestParseCriteria(t *testing.T) {
	assert.Equal(t, CountCriteria{Target: 10, Category: activity.CategoryWorkout}, ParseCriteria("count", 10, "Workout"))
	assert.Equal(t, StreakCriteria{Target: 7}, ParseCriteria("streak", 7, ""))

	c := ParseCriteria("time", 3, "")
	assert.Equal(t, CriteriaKind("time"), c.Kind())
	assert.Equal(t, 3, c.Threshold())
}

func TestProgress(t *testing.T) {
	c := DefaultCatalog()
	stats := &UserStats{TotalActivities: 3, WorkoutCount: 3, CurrentStreak: 2, LongestStreak: 9}

	fw, _ := c.Find("fitness-warrior")
	v, target := Progress(fw, stats)
	assert.Equal(t, 3, v)
	assert.Equal(t, 10, target)

	ss, _ := c.Find("streak-starter")
	v, target = Progress(ss, stats)
	assert.Equal(t, 7, v)
	assert.Equal(t, 7, target)
}

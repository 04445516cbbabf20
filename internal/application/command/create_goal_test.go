package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/goal"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

func TestCreateGoal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	g, err := f.createGoalHandler().Handle(ctx, CreateGoalCommand{
		UserID:      "user-1",
		Title:       "  Ship side project  ",
		Category:    "Creating Something",
		Period:      "Yearly",
		TargetCount: 24,
		SubGoals: []SubGoalInput{
			{Name: "Design", TargetCount: 4},
			{Name: "Build", Description: "Weekly sessions", TargetCount: 20},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, goal.ID("goal-1"), g.ID)
	assert.Equal(t, "Ship side project", g.Title)
	assert.Equal(t, activity.CategoryCreating, g.Category)
	assert.Equal(t, goal.PeriodYearly, g.Period)
	require.Len(t, g.SubGoals, 2)
	assert.Equal(t, "goal-2", g.SubGoals[0].ID)
	assert.Equal(t, testNow, g.CreatedAt)

	stored, err := f.goals.GetByID(ctx, "user-1", g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Title, stored.Title)
	assert.Equal(t, []shared.EventType{shared.EventGoalCreated}, f.publisher.types())
}

func TestCreateGoal_Validation(t *testing.T) {
	f := newFixture()
	h := f.createGoalHandler()

	valid := func() CreateGoalCommand {
		return CreateGoalCommand{
			UserID: "user-1", Title: "Run", Category: "Workout", Period: "monthly", TargetCount: 8,
			SubGoals: []SubGoalInput{{Name: "Long run", TargetCount: 2}},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *CreateGoalCommand)
		want   error
	}{
		{"bad category", func(c *CreateGoalCommand) { c.Category = "Gaming" }, shared.ErrInvalidCategory},
		{"bad period", func(c *CreateGoalCommand) { c.Period = "weekly" }, shared.ErrInvalidGoalPeriod},
		{"zero target", func(c *CreateGoalCommand) { c.TargetCount = 0 }, shared.ErrInvalidGoalTarget},
		{"no sub-goals", func(c *CreateGoalCommand) { c.SubGoals = nil }, shared.ErrNoSubGoals},
		{"empty title", func(c *CreateGoalCommand) { c.Title = " " }, shared.ErrInvalidGoalTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := valid()
			tt.mutate(&cmd)
			_, err := h.Handle(context.Background(), cmd)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

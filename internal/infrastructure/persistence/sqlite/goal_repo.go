package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/goal"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

// GoalRepository implements goal.Repository. Sub-goals are stored as JSON.
type GoalRepository struct {
	db *DB
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(db *DB) *GoalRepository {
	return &GoalRepository{db: db}
}

type goalRow struct {
	ID          string        `db:"id"`
	UserID      string        `db:"user_id"`
	Title       string        `db:"title"`
	Description string        `db:"description"`
	Category    string        `db:"category"`
	Period      string        `db:"period"`
	TargetCount int           `db:"target_count"`
	SubGoals    string        `db:"sub_goals"`
	CompletedAt sql.NullInt64 `db:"completed_at"`
	CreatedAt   int64         `db:"created_at"`
}

func (r goalRow) toDomain() (*goal.Goal, error) {
	g := &goal.Goal{
		ID:          goal.ID(r.ID),
		UserID:      shared.UserID(r.UserID),
		Title:       r.Title,
		Description: r.Description,
		Category:    activity.Category(r.Category),
		Period:      goal.Period(r.Period),
		TargetCount: r.TargetCount,
		CompletedAt: timeFromNull(r.CompletedAt),
		CreatedAt:   fromNanos(r.CreatedAt),
	}
	if err := json.Unmarshal([]byte(r.SubGoals), &g.SubGoals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sub-goals: %w", err)
	}
	return g, nil
}

const selectGoals = `
	SELECT id, user_id, title, description, category, period, target_count,
	       sub_goals, completed_at, created_at
	FROM goals`

// Save inserts a new goal.
func (r *GoalRepository) Save(ctx context.Context, g *goal.Goal) error {
	subGoals, err := json.Marshal(g.SubGoals)
	if err != nil {
		return fmt.Errorf("failed to marshal sub-goals: %w", err)
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO goals (
			id, user_id, title, description, category, period, target_count,
			sub_goals, completed_at, created_at
		) VALUES (
			:id, :user_id, :title, :description, :category, :period, :target_count,
			:sub_goals, :completed_at, :created_at
		)`, goalRow{
		ID:          g.ID.String(),
		UserID:      g.UserID.String(),
		Title:       g.Title,
		Description: g.Description,
		Category:    g.Category.String(),
		Period:      string(g.Period),
		TargetCount: g.TargetCount,
		SubGoals:    string(subGoals),
		CompletedAt: nullNanos(g.CompletedAt),
		CreatedAt:   toNanos(g.CreatedAt),
	})
	if err != nil {
		if isConstraintViolation(err) {
			return shared.WrapError("goal", "Save", shared.ErrAlreadyExists, "goal already exists", err)
		}
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

// GetByID returns a goal owned by the user.
func (r *GoalRepository) GetByID(ctx context.Context, userID shared.UserID, id goal.ID) (*goal.Goal, error) {
	var row goalRow
	err := r.db.GetContext(ctx, &row, selectGoals+` WHERE user_id = ? AND id = ?`, userID.String(), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return row.toDomain()
}

// ListByUser returns the user's goals, newest first.
func (r *GoalRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*goal.Goal, error) {
	var rows []goalRow
	if err := r.db.SelectContext(ctx, &rows, selectGoals+` WHERE user_id = ? ORDER BY created_at DESC`, userID.String()); err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	out := make([]*goal.Goal, 0, len(rows))
	for _, row := range rows {
		g, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// MarkCompleted sets completed_at once.
func (r *GoalRepository) MarkCompleted(ctx context.Context, userID shared.UserID, id goal.ID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET completed_at = ? WHERE user_id = ? AND id = ? AND completed_at IS NULL`,
		toNanos(at), userID.String(), id.String())
	if err != nil {
		return false, fmt.Errorf("failed to mark goal completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, userID, id); err != nil {
		return false, err
	}
	return false, nil
}

// CountCompleted returns the number of completed goals of the user.
func (r *GoalRepository) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM goals WHERE user_id = ? AND completed_at IS NOT NULL`, userID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to count completed goals: %w", err)
	}
	return n, nil
}

var _ goal.Repository = (*GoalRepository)(nil)

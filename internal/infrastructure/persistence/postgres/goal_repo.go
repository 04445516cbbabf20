package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/goal"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL REPOSITORY IMPLEMENTATION
// Sub-goals are stored inline as a JSONB array; they are never queried
// on their own.
// ══════════════════════════════════════════════════════════════════════════════

// GoalRepository implements goal.Repository for PostgreSQL.
type GoalRepository struct {
	conn *Connection
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(conn *Connection) *GoalRepository {
	return &GoalRepository{conn: conn}
}

const goalColumns = `
	id, user_id, title, description, category, period, target_count,
	sub_goals, completed_at, created_at
`

// Save inserts a new goal with its sub-goals.
func (r *GoalRepository) Save(ctx context.Context, g *goal.Goal) error {
	subGoals, err := json.Marshal(g.SubGoals)
	if err != nil {
		return fmt.Errorf("failed to marshal sub-goals: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO goals (`+goalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		g.ID.String(),
		g.UserID.String(),
		g.Title,
		g.Description,
		g.Category.String(),
		string(g.Period),
		g.TargetCount,
		subGoals,
		g.CompletedAt,
		g.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("goal", "Save", shared.ErrAlreadyExists, "goal already exists", err)
		}
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

// GetByID returns a goal owned by the user.
func (r *GoalRepository) GetByID(ctx context.Context, userID shared.UserID, id goal.ID) (*goal.Goal, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = $1 AND id = $2`,
		userID.String(), id.String())

	g, err := scanGoal(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGoalNotFound
		}
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return g, nil
}

// ListByUser returns the user's goals, newest first.
func (r *GoalRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*goal.Goal, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY created_at DESC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var out []*goal.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// MarkCompleted sets completed_at once; later calls report false.
func (r *GoalRepository) MarkCompleted(ctx context.Context, userID shared.UserID, id goal.ID, at time.Time) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE goals SET completed_at = $3
		WHERE user_id = $1 AND id = $2 AND completed_at IS NULL
	`, userID.String(), id.String(), at)
	if err != nil {
		return false, fmt.Errorf("failed to mark goal completed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Distinguish "already completed" from "no such goal".
	if _, err := r.GetByID(ctx, userID, id); err != nil {
		return false, err
	}
	return false, nil
}

// CountCompleted returns the number of completed goals of the user.
func (r *GoalRepository) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM goals WHERE user_id = $1 AND completed_at IS NOT NULL
	`, userID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed goals: %w", err)
	}
	return n, nil
}

func scanGoal(row pgx.Row) (*goal.Goal, error) {
	var (
		g                    goal.Goal
		id, userID, cat, per string
		subGoals             []byte
	)
	if err := row.Scan(&id, &userID, &g.Title, &g.Description, &cat, &per, &g.TargetCount,
		&subGoals, &g.CompletedAt, &g.CreatedAt); err != nil {
		return nil, err
	}

	g.ID = goal.ID(id)
	g.UserID = shared.UserID(userID)
	g.Category = activity.Category(cat)
	g.Period = goal.Period(per)
	if err := json.Unmarshal(subGoals, &g.SubGoals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sub-goals: %w", err)
	}
	return &g, nil
}

var _ goal.Repository = (*GoalRepository)(nil)

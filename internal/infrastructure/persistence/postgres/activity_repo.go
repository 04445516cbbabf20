package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ActivityRepository implements activity.Repository for PostgreSQL.
type ActivityRepository struct {
	conn *Connection
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

const activityColumns = `
	id, user_id, category, description, detail, duration_minutes,
	goal_id, sub_goal_id, goal_progress_percentage, "timestamp", created_at
`

// Save inserts a new activity.
func (r *ActivityRepository) Save(ctx context.Context, a *activity.Activity) error {
	detail, err := json.Marshal(a.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal activity detail: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO activities (`+activityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		a.ID.String(),
		a.UserID.String(),
		a.Category.String(),
		a.Description,
		detail,
		a.DurationMinutes,
		nullString(a.GoalID),
		nullString(a.SubGoalID),
		a.GoalProgressPercent,
		a.Timestamp,
		a.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("activity", "Save", shared.ErrAlreadyExists, "activity already exists", err)
		}
		return fmt.Errorf("failed to save activity: %w", err)
	}
	return nil
}

// GetByID returns a single activity owned by the user.
func (r *ActivityRepository) GetByID(ctx context.Context, userID shared.UserID, id activity.ID) (*activity.Activity, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE user_id = $1 AND id = $2`,
		userID.String(), id.String())

	a, err := scanActivity(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return a, nil
}

// ListByUser returns the user's full history, newest first.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*activity.Activity, error) {
	return r.list(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE user_id = $1
		ORDER BY "timestamp" DESC, created_at DESC
	`, userID.String())
}

// ListByUserSince returns activities with timestamp >= since, newest first.
func (r *ActivityRepository) ListByUserSince(ctx context.Context, userID shared.UserID, since time.Time) ([]*activity.Activity, error) {
	return r.list(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE user_id = $1 AND "timestamp" >= $2
		ORDER BY "timestamp" DESC, created_at DESC
	`, userID.String(), since)
}

// ListActiveUsersSince returns users that recorded anything after since.
func (r *ActivityRepository) ListActiveUsersSince(ctx context.Context, since time.Time) ([]shared.UserID, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT DISTINCT user_id FROM activities WHERE created_at > $1 ORDER BY user_id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var users []shared.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, shared.UserID(id))
	}
	return users, rows.Err()
}

func (r *ActivityRepository) list(ctx context.Context, query string, args ...interface{}) ([]*activity.Activity, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var out []*activity.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanActivity(row pgx.Row) (*activity.Activity, error) {
	var (
		a                  activity.Activity
		id, userID, cat    string
		detail             []byte
		goalID, subGoalID  *string
		duration, progress *int
	)
	if err := row.Scan(&id, &userID, &cat, &a.Description, &detail, &duration,
		&goalID, &subGoalID, &progress, &a.Timestamp, &a.CreatedAt); err != nil {
		return nil, err
	}

	a.ID = activity.ID(id)
	a.UserID = shared.UserID(userID)
	a.Category = activity.Category(cat)
	a.DurationMinutes = duration
	a.GoalProgressPercent = progress
	a.GoalID = derefString(goalID)
	a.SubGoalID = derefString(subGoalID)
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &a.Detail); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity detail: %w", err)
		}
	}
	return &a, nil
}

// nullString maps "" to SQL NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ activity.Repository = (*ActivityRepository)(nil)

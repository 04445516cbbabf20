package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

// ActivityRepository implements activity.Repository.
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

type activityRow struct {
	ID                  string         `db:"id"`
	UserID              string         `db:"user_id"`
	Category            string         `db:"category"`
	Description         string         `db:"description"`
	Detail              string         `db:"detail"`
	DurationMinutes     sql.NullInt64  `db:"duration_minutes"`
	GoalID              sql.NullString `db:"goal_id"`
	SubGoalID           sql.NullString `db:"sub_goal_id"`
	GoalProgressPercent sql.NullInt64  `db:"goal_progress_percentage"`
	OccurredAt          int64          `db:"occurred_at"`
	CreatedAt           int64          `db:"created_at"`
}

func (r activityRow) toDomain() (*activity.Activity, error) {
	a := &activity.Activity{
		ID:                  activity.ID(r.ID),
		UserID:              shared.UserID(r.UserID),
		Category:            activity.Category(r.Category),
		Description:         r.Description,
		DurationMinutes:     intFromNull(r.DurationMinutes),
		GoalID:              r.GoalID.String,
		SubGoalID:           r.SubGoalID.String,
		GoalProgressPercent: intFromNull(r.GoalProgressPercent),
		Timestamp:           fromNanos(r.OccurredAt),
		CreatedAt:           fromNanos(r.CreatedAt),
	}
	if err := json.Unmarshal([]byte(r.Detail), &a.Detail); err != nil {
		return nil, fmt.Errorf("failed to unmarshal activity detail: %w", err)
	}
	return a, nil
}

const selectActivities = `
	SELECT id, user_id, category, description, detail, duration_minutes, goal_id,
	       sub_goal_id, goal_progress_percentage, occurred_at, created_at
	FROM activities`

// Save inserts a new activity.
func (r *ActivityRepository) Save(ctx context.Context, a *activity.Activity) error {
	detail, err := json.Marshal(a.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal activity detail: %w", err)
	}

	row := activityRow{
		ID:                  a.ID.String(),
		UserID:              a.UserID.String(),
		Category:            a.Category.String(),
		Description:         a.Description,
		Detail:              string(detail),
		DurationMinutes:     nullInt(a.DurationMinutes),
		GoalID:              nullString(a.GoalID),
		SubGoalID:           nullString(a.SubGoalID),
		GoalProgressPercent: nullInt(a.GoalProgressPercent),
		OccurredAt:          toNanos(a.Timestamp),
		CreatedAt:           toNanos(a.CreatedAt),
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO activities (
			id, user_id, category, description, detail, duration_minutes, goal_id,
			sub_goal_id, goal_progress_percentage, occurred_at, created_at
		) VALUES (
			:id, :user_id, :category, :description, :detail, :duration_minutes, :goal_id,
			:sub_goal_id, :goal_progress_percentage, :occurred_at, :created_at
		)`, row)
	if err != nil {
		if isConstraintViolation(err) {
			return shared.WrapError("activity", "Save", shared.ErrAlreadyExists, "activity already exists", err)
		}
		return fmt.Errorf("failed to save activity: %w", err)
	}
	return nil
}

// GetByID returns a single activity owned by the user.
func (r *ActivityRepository) GetByID(ctx context.Context, userID shared.UserID, id activity.ID) (*activity.Activity, error) {
	var row activityRow
	err := r.db.GetContext(ctx, &row, selectActivities+` WHERE user_id = ? AND id = ?`, userID.String(), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return row.toDomain()
}

// ListByUser returns the user's full history, newest first.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*activity.Activity, error) {
	return r.list(ctx, selectActivities+`
		WHERE user_id = ?
		ORDER BY occurred_at DESC, created_at DESC`, userID.String())
}

// ListByUserSince returns activities with timestamp >= since, newest first.
func (r *ActivityRepository) ListByUserSince(ctx context.Context, userID shared.UserID, since time.Time) ([]*activity.Activity, error) {
	return r.list(ctx, selectActivities+`
		WHERE user_id = ? AND occurred_at >= ?
		ORDER BY occurred_at DESC, created_at DESC`, userID.String(), toNanos(since))
}

// ListActiveUsersSince returns users that recorded anything after since.
func (r *ActivityRepository) ListActiveUsersSince(ctx context.Context, since time.Time) ([]shared.UserID, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT user_id FROM activities WHERE created_at > ? ORDER BY user_id`, toNanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}

	users := make([]shared.UserID, 0, len(ids))
	for _, id := range ids {
		users = append(users, shared.UserID(id))
	}
	return users, nil
}

func (r *ActivityRepository) list(ctx context.Context, query string, args ...interface{}) ([]*activity.Activity, error) {
	var rows []activityRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	out := make([]*activity.Activity, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

var _ activity.Repository = (*ActivityRepository)(nil)

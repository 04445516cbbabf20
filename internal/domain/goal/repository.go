package goal

import (
	"context"
	"time"

	"github.com/grithabit/grithabit/internal/domain/shared"
)

// Repository defines the interface for goal persistence.
type Repository interface {
	// Save inserts a new goal with its sub-goals.
	Save(ctx context.Context, g *Goal) error

	// GetByID returns a goal owned by the user or shared.ErrGoalNotFound.
	GetByID(ctx context.Context, userID shared.UserID, id ID) (*Goal, error)

	// ListByUser returns the user's goals, newest first.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*Goal, error)

	// MarkCompleted sets completed_at if it is not already set. It reports
	// whether this call performed the transition.
	MarkCompleted(ctx context.Context, userID shared.UserID, id ID, at time.Time) (bool, error)

	// CountCompleted returns the number of completed goals of the user.
	CountCompleted(ctx context.Context, userID shared.UserID) (int, error)
}

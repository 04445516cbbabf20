package activity

import (
	"context"
	"time"

	"github.com/grithabit/grithabit/internal/domain/shared"
)

// Repository defines the interface for activity persistence.
// This interface is implemented by the infrastructure layer.
// Activities are append-only: there is no update or delete.
type Repository interface {
	// Save persists a new activity. A failure here is fatal to the
	// recording operation.
	Save(ctx context.Context, activity *Activity) error

	// GetByID returns a single activity owned by the user.
	GetByID(ctx context.Context, userID shared.UserID, id ID) (*Activity, error)

	// ListByUser returns the user's full history, newest first.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*Activity, error)

	// ListByUserSince returns activities with timestamp >= since, newest first.
	// Used for goal progress and contribution data.
	ListByUserSince(ctx context.Context, userID shared.UserID, since time.Time) ([]*Activity, error)

	// ListActiveUsersSince returns users that recorded anything after since.
	// Used by the reconciliation job.
	ListActiveUsersSince(ctx context.Context, since time.Time) ([]shared.UserID, error)
}

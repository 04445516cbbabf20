// Package query contains read operations (CQRS - Queries).
// Queries never mutate state; derived values (levels, goal progress,
// contribution counts) are computed at read time.
package query

import (
	"time"

	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/logger"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// Config holds the settings shared by all query handlers.
type Config struct {
	// Location is the reference timezone for calendar dates.
	Location *time.Location

	// Clock supplies "now"; nil means the system clock.
	Clock timeutil.Clock

	// Logger is used when the request context carries none.
	Logger *logger.Logger
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Clock == nil {
		c.Clock = timeutil.SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	return c
}

func parseUserID(op, raw string) (shared.UserID, error) {
	userID, err := shared.NewUserID(raw)
	if err != nil {
		return "", shared.WrapError("query", op, shared.ErrValidation, "invalid user ID", err)
	}
	return userID, nil
}

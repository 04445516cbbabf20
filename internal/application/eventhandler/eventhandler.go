// Package eventhandler contains reactions to domain events.
// Handlers run after the command that raised the event has finished its
// bookkeeping, so they only perform side effects: cache invalidation and
// structured progress logging.
package eventhandler

import (
	"fmt"

	"github.com/grithabit/grithabit/internal/domain/shared"
)

// Registrar is implemented by every handler in this package.
type Registrar interface {
	Register(bus shared.EventSubscriber) error
}

// RegisterAll subscribes every handler to the bus.
func RegisterAll(bus shared.EventSubscriber, handlers ...Registrar) error {
	for _, h := range handlers {
		if err := h.Register(bus); err != nil {
			return fmt.Errorf("register event handler: %w", err)
		}
	}
	return nil
}

// userIDOf extracts the owning user of an event. Events received from
// another instance only carry their payload, so the payload is checked
// before the aggregate id.
func userIDOf(event shared.Event) string {
	if v, ok := event.Payload()["user_id"].(string); ok && v != "" {
		return v
	}
	return event.AggregateID()
}

func intOf(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func stringOf(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}

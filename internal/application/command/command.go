package command

import (
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/logger"
)

// publish sends events after the write they describe has been committed.
// A failed publish is logged and never fails the command.
func publish(publisher shared.EventPublisher, log *logger.Logger, events ...shared.Event) {
	if publisher == nil {
		return
	}
	for _, event := range events {
		if err := publisher.Publish(event); err != nil {
			log.Warn("failed to publish event",
				logger.EventType(string(event.EventType())),
				logger.Err(err),
			)
		}
	}
}

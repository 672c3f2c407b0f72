// Package logging provides logrus-backed decorators for the three dispatch
// paths. Decorators observe, they never alter outcomes.
package logging

import (
	"context"

	cqrs "github.com/emberfall/cqrs"
	"github.com/sirupsen/logrus"
)

// WithEventLogging returns event-bus middleware that logs each subscriber
// invocation and its outcome.
func WithEventLogging(logger *logrus.Entry) cqrs.EventMiddleware {
	return func(next cqrs.EventHandler) cqrs.EventHandler {
		return cqrs.NewEventHandlerFunc(func(ctx context.Context, event cqrs.Event) error {
			entry := logger.WithFields(logrus.Fields{
				"event":        event.EventType(),
				"aggregate_id": event.AggregateID(),
			})

			err := next.Handle(ctx, event)
			if err != nil {
				entry.WithError(err).Error("event handler failed")
				return err
			}
			entry.Debug("event handled")
			return nil
		})
	}
}

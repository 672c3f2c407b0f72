package logging

import (
	"context"

	cqrs "github.com/emberfall/cqrs"
	"github.com/sirupsen/logrus"
)

// WithCommandLogging returns command-bus middleware that logs each dispatch
// and its outcome. Logging never affects dispatch behavior.
func WithCommandLogging(logger *logrus.Entry) cqrs.CommandMiddleware {
	return func(next cqrs.CommandHandler) cqrs.CommandHandler {
		return cqrs.CommandHandlerFunc(func(ctx context.Context, command cqrs.Command) error {
			entry := logger.WithFields(logrus.Fields{
				"command":      command.CommandType(),
				"aggregate_id": command.AggregateID(),
				"tenant":       cqrs.TenantFromContext(ctx),
			})
			entry.Info("dispatching command")

			err := next.HandleCommand(ctx, command)
			if err != nil {
				entry.WithError(err).Error("command failed")
			}
			return err
		})
	}
}

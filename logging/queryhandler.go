package logging

import (
	"context"

	cqrs "github.com/emberfall/cqrs"
	"github.com/sirupsen/logrus"
)

// WithQueryLogging returns query-bus middleware that logs each executed
// query. Cache hits bypass middleware and are not logged here.
func WithQueryLogging(logger *logrus.Entry) cqrs.QueryMiddleware {
	return func(next cqrs.QueryHandler) cqrs.QueryHandler {
		return cqrs.QueryHandlerFunc(func(ctx context.Context, query cqrs.Query) (any, error) {
			entry := logger.WithField("query", query.QueryType())
			entry.Debug("executing query")

			result, err := next.HandleQuery(ctx, query)
			if err != nil {
				entry.WithError(err).Error("query failed")
			}
			return result, err
		})
	}
}

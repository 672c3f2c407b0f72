package cqrs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/emberfall/cqrs"

// Semantic attribute keys used on spans and metrics.
const (
	AttrCommandType = attribute.Key("cqrs.command.type")
	AttrQueryType   = attribute.Key("cqrs.query.type")
	AttrEventType   = attribute.Key("cqrs.event.type")
	AttrAggregateID = attribute.Key("cqrs.aggregate.id")
	AttrTenantID    = attribute.Key("cqrs.tenant.id")
	AttrEventCount  = attribute.Key("cqrs.events.count")
	AttrErrorType   = attribute.Key("cqrs.error.type")
	AttrCacheHit    = attribute.Key("cqrs.query.cache_hit")
)

// Instruments are created against the global meter at package init, so they
// are valid no-ops until an SDK meter provider is installed.
var (
	meter  = otel.Meter(instrumentationName)
	tracer = otel.Tracer(instrumentationName)

	commandsHandled, _ = meter.Int64Counter(
		"cqrs.commands.handled",
		metric.WithDescription("Number of commands handled"),
		metric.WithUnit("{command}"),
	)
	commandsFailed, _ = meter.Int64Counter(
		"cqrs.commands.failed",
		metric.WithDescription("Number of commands that failed"),
		metric.WithUnit("{command}"),
	)
	commandsDuration, _ = meter.Float64Histogram(
		"cqrs.commands.duration",
		metric.WithDescription("Command handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	queriesHandled, _ = meter.Int64Counter(
		"cqrs.queries.handled",
		metric.WithDescription("Number of queries handled"),
		metric.WithUnit("{query}"),
	)
	queriesFailed, _ = meter.Int64Counter(
		"cqrs.queries.failed",
		metric.WithDescription("Number of queries that failed"),
		metric.WithUnit("{query}"),
	)
	queryCacheHits, _ = meter.Int64Counter(
		"cqrs.queries.cache_hits",
		metric.WithDescription("Number of queries served from the result cache"),
		metric.WithUnit("{query}"),
	)

	eventsPublished, _ = meter.Int64Counter(
		"cqrs.eventbus.published",
		metric.WithDescription("Number of events published to the event bus"),
		metric.WithUnit("{event}"),
	)
	eventBusErrors, _ = meter.Int64Counter(
		"cqrs.eventbus.errors",
		metric.WithDescription("Number of event handler failures"),
		metric.WithUnit("{error}"),
	)

	eventsAppended, _ = meter.Int64Counter(
		"cqrs.events.appended",
		metric.WithDescription("Number of events appended to streams"),
		metric.WithUnit("{event}"),
	)
	eventsLoaded, _ = meter.Int64Counter(
		"cqrs.events.loaded",
		metric.WithDescription("Number of events loaded from streams"),
		metric.WithUnit("{event}"),
	)
	concurrencyConflicts, _ = meter.Int64Counter(
		"cqrs.concurrency.conflicts",
		metric.WithDescription("Number of optimistic concurrency conflicts"),
		metric.WithUnit("{conflict}"),
	)
)

// Tracer returns the library tracer, for backends that start their own spans.
func Tracer() trace.Tracer { return tracer }

// RecordAppend updates append metrics; used by store backends.
func RecordAppend(ctx context.Context, n int) {
	eventsAppended.Add(ctx, int64(n))
}

// RecordLoad updates load metrics; used by store backends.
func RecordLoad(ctx context.Context, n int) {
	eventsLoaded.Add(ctx, int64(n))
}

// RecordConflict counts one optimistic concurrency conflict.
func RecordConflict(ctx context.Context) {
	concurrencyConflicts.Add(ctx, 1)
}

// TypeName returns a stable name for a value's dynamic type.
func TypeName(v any) string {
	return fmt.Sprintf("%T", v)
}

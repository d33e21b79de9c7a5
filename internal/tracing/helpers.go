package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DBOperation labels the kind of database work a span covers.
type DBOperation string

const (
	DBOperationQuery  DBOperation = "query"
	DBOperationInsert DBOperation = "insert"
	DBOperationUpdate DBOperation = "update"
	DBOperationDelete DBOperation = "delete"
	DBOperationExec   DBOperation = "exec"
)

// endFunc closes a span, recording err as the span status when non-nil.
type endFunc func(error)

func spanCloser(span trace.Span) endFunc {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartDBSpan opens a client span named "<operation> <table>" with standard
// db.* attributes. Call the returned function with the operation's error:
//
//	ctx, endSpan := tracing.StartDBSpan(ctx, "claims", tracing.DBOperationQuery)
//	rows, err := q.QueryContext(ctx, ...)
//	endSpan(err)
func StartDBSpan(ctx context.Context, table string, operation DBOperation) (context.Context, endFunc) {
	spanName := string(operation)
	if table != "" {
		spanName += " " + table
	}

	ctx, span := otel.Tracer("engine/db").Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", string(operation)),
		),
	)
	if table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}

	return ctx, spanCloser(span)
}

// StartSpan opens an internal span for a named operation, such as
// "recompute_credibility" or "resolve_challenge".
func StartSpan(ctx context.Context, name string) (context.Context, endFunc) {
	ctx, span := otel.Tracer("engine").Start(ctx, name)
	return ctx, spanCloser(span)
}

// AddEvent records a point-in-time event on the span in ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the span in ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "clawkanban"

// StartScanSpan starts a span for a session log scan.
func StartScanSpan(ctx context.Context, algorithm string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "cost.scan",
		trace.WithAttributes(attribute.String("cost.algorithm", algorithm)),
	)
}

// StartSettleSpan starts a span for a watcher settle of one task file.
func StartSettleSpan(ctx context.Context, project, taskID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "watcher.settle",
		trace.WithAttributes(
			attribute.String("project", project),
			attribute.String("task.id", taskID),
		),
	)
}

// StartTransitionSpan starts a span for an API state transition.
func StartTransitionSpan(ctx context.Context, project, taskID, state string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task.transition",
		trace.WithAttributes(
			attribute.String("project", project),
			attribute.String("task.id", taskID),
			attribute.String("task.state", state),
		),
	)
}

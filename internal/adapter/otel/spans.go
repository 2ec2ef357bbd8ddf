package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "humancheck"

// StartRoutingSpan starts a span for rule resolution against a review.
func StartRoutingSpan(ctx context.Context, reviewID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "routing",
		trace.WithAttributes(
			attribute.String("review.id", reviewID),
		),
	)
}

// StartDeliverySpan starts a span for one notification delivery attempt.
func StartDeliverySpan(ctx context.Context, reviewID, target, recipient string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "delivery",
		trace.WithAttributes(
			attribute.String("review.id", reviewID),
			attribute.String("delivery.target", target),
			attribute.String("delivery.recipient", recipient),
		),
	)
}

// EndSpan records the outcome on the span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

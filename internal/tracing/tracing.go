// Package tracing provides the OpenTelemetry span helpers the protocol
// engine uses to instrument outbound control round trips and inbound
// handler dispatch. It is ambient observability: present even though the
// distilled behavioral spec does not call for it, because the rest of the
// corpus this SDK is built from consistently wraps RPC paths in spans.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this SDK's instrumentation scope to whatever
// TracerProvider the host process has configured. When none is
// configured, otel's global no-op provider makes every span a cheap stub.
const tracerName = "github.com/flowloop/agentsdk"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartControlSpan opens a span around an outbound send_control round
// trip, tagging it with the request subtype and id.
func StartControlSpan(ctx context.Context, subtype, requestID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "agentsdk.control."+subtype,
		trace.WithAttributes(
			attribute.String("agentsdk.control.subtype", subtype),
			attribute.String("agentsdk.control.request_id", requestID),
		),
	)
}

// StartDispatchSpan opens a span around dispatch of an inbound
// control_request.
func StartDispatchSpan(ctx context.Context, subtype, requestID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "agentsdk.dispatch."+subtype,
		trace.WithAttributes(
			attribute.String("agentsdk.dispatch.subtype", subtype),
			attribute.String("agentsdk.dispatch.request_id", requestID),
		),
	)
}

// End records the outcome of a span opened by StartControlSpan or
// StartDispatchSpan and closes it. Pass a non-nil err to mark the span as
// failed.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

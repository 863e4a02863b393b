package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	codes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// tracerName is the default name used when acquiring a tracer instance.
// Consistent naming helps identify the source of spans.
const tracerName = "flowmech"

// GetTracer returns a named tracer instance from the globally configured OpenTelemetry provider.
// If no global provider is configured (e.g., in tests or simple applications),
// it defaults to returning a NoOpTracer, which safely discards all tracing data.
// Note: It's generally preferred to inject the TracerProvider into components rather
// than relying on the global provider.
func GetTracer() oteltrace.Tracer {
	return otel.Tracer(tracerName)
}

// NodeAttributes builds the standard span attributes for an operation scoped
// to one node execution.
func NodeAttributes(planExecutionID, nodeExecutionID, stepType string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("flowmech.plan_execution_id", planExecutionID),
		attribute.String("flowmech.node_execution_id", nodeExecutionID),
	}
	if stepType != "" {
		attrs = append(attrs, attribute.String("flowmech.step_type", stepType))
	}
	return attrs
}

// RecordError records an error on an OpenTelemetry span and marks the span
// status accordingly. Does nothing if the error is nil or the span is not
// recording.
func RecordError(span oteltrace.Span, err error) {
	if err == nil || span == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err, oteltrace.WithStackTrace(true))
	span.SetStatus(codes.Error, err.Error())
}

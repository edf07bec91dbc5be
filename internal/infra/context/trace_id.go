package context

import (
	"context"
)

const contextKeyTraceID = contextKey("traceID")

// TraceIDFromContext extracts the trace ID from the context.
// Returns the trace ID and true if present, or empty string and false if not present.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(contextKeyTraceID).(string)

	return traceID, ok && traceID != ""
}

// WithTraceID returns a context carrying traceID, which follows the request
// into logs and outbound verifier calls.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKeyTraceID, traceID)
}

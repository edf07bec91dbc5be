package http

import (
	"net/http"

	context_ "github.com/mkrupp/worldfan/internal/infra/context"
	"github.com/mkrupp/worldfan/internal/util/encoding"
)

const (
	// TraceIDHeader carries the trace id between services.
	TraceIDHeader = "X-Request-ID"

	maxTraceIDLength = 128
)

// TracingMiddleware creates middleware that adds request tracing.
// It uses the X-Request-ID header if present, otherwise generates a new id.
// The trace ID is added to the request context and echoed in the response.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := getTraceID(r)
		if traceID != "" {
			w.Header().Set(TraceIDHeader, traceID)
		}

		ctx := context_.WithTraceID(r.Context(), traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getTraceID(r *http.Request) string {
	if traceID := r.Header.Get(TraceIDHeader); traceID != "" && len(traceID) <= maxTraceIDLength {
		return traceID
	}

	id, err := encoding.NewID()
	if err != nil {
		return ""
	}

	return id
}

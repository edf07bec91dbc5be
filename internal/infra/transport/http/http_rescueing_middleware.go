package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mkrupp/worldfan/internal/infra/logging"
)

// RescueingMiddleware creates middleware that recovers from panics in HTTP handlers.
// It logs the panic and stack trace, then answers with the generic JSON error body.
func RescueingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func(ctx context.Context) {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler { //nolint:errorlint,err113
					panic(p)
				}

				log.ErrorContext(ctx, "request panic", slog.Group("http",
					"uri", r.URL.Path,
					"method", r.Method,
				), slog.Group("error",
					"panic", fmt.Sprint(p),
					"stack", string(debug.Stack()),
				))

				_ = WriteError(w, fmt.Errorf("panic: %v", p))
			}
		}(r.Context())
		next.ServeHTTP(w, r)
	})
}

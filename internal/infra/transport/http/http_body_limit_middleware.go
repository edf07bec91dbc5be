package http

import "net/http"

// BodyLimitMiddleware caps request bodies at limit bytes. A non-positive limit disables the cap.
func BodyLimitMiddleware(next http.Handler, limit int64) http.Handler {
	if limit <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)

		next.ServeHTTP(w, r)
	})
}

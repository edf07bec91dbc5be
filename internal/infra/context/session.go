package context

import (
	"context"
)

const contextKeySession = contextKey("session")

// SessionInfo identifies the verified human behind an authenticated request.
type SessionInfo struct {
	SessionID     string
	NullifierHash string
}

// SessionFromContext extracts the session info placed by the session middleware.
// Returns false when the request is unauthenticated.
func SessionFromContext(ctx context.Context) (SessionInfo, bool) {
	info, ok := ctx.Value(contextKeySession).(SessionInfo)

	return info, ok
}

// WithSession returns a context carrying the given session info.
func WithSession(ctx context.Context, info SessionInfo) context.Context {
	return context.WithValue(ctx, contextKeySession, info)
}

package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkrupp/worldfan/internal/domain"
	context_ "github.com/mkrupp/worldfan/internal/infra/context"
	"github.com/mkrupp/worldfan/internal/infra/logging"
)

// AuthorizationHeader carries the bearer session token.
const AuthorizationHeader = "Authorization"

// Authenticator resolves a session token into the session it represents.
type Authenticator interface {
	// Authenticate returns domain.ErrUnauthorized for absent, invalid, expired
	// or revoked tokens.
	Authenticate(ctx context.Context, token string) (context_.SessionInfo, error)
}

// SessionMiddleware creates middleware that requires a valid session token.
// Requests without one are rejected with 401. On success, the session info is
// added to the request context.
func SessionMiddleware(
	next http.Handler,
	authenticator Authenticator,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			log.WarnContext(r.Context(), "no session token provided")
			_ = WriteError(w, fmt.Errorf("%w: no token", domain.ErrUnauthorized))

			return
		}

		info, err := authenticator.Authenticate(r.Context(), token)
		if err != nil {
			log.WarnContext(r.Context(), "authenticate session failed", "error", err)
			_ = WriteError(w, err)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithSession(r.Context(), info)))
	})
}

// BearerToken extracts the token of a "Bearer" Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get(AuthorizationHeader)), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}

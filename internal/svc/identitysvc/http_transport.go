package identitysvc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mkrupp/worldfan/internal/domain"
	context_ "github.com/mkrupp/worldfan/internal/infra/context"
	"github.com/mkrupp/worldfan/internal/infra/logging"
	http_ "github.com/mkrupp/worldfan/internal/infra/transport/http"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig
}

// HTTPTransport handles HTTP requests for the identity service.
type HTTPTransport struct {
	identitySvc *IdentityService
	log         logging.Logger
	cfg         HTTPTransportConfig
	mux         *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// Routes:
//   - POST /verify: verify a proof and reconcile the account
//   - GET /account?nullifierHash=: look up an account
//   - GET /session: describe the caller's session
//   - DELETE /session: revoke the caller's session
//   - GET /healthz: report store reachability
func NewHTTPTransport(
	identitySvc *IdentityService,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	ht := &HTTPTransport{
		identitySvc: identitySvc,
		log:         logging.GetLogger("svc.identitysvc.http_transport"),
		cfg:         cfg,
	}

	withSession := func(h http.HandlerFunc) http.Handler {
		return http_.SessionMiddleware(h, identitySvc, ht.log)
	}

	ht.mux = http.NewServeMux()
	ht.mux.HandleFunc("POST /verify", ht.HandleVerify)
	ht.mux.HandleFunc("GET /account", ht.HandleAccount)
	ht.mux.Handle("GET /session", withSession(ht.HandleSession))
	ht.mux.Handle("DELETE /session", withSession(ht.HandleRevokeSession))
	ht.mux.HandleFunc("GET /healthz", ht.HandleHealth)

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

// HandleVerify processes proof verification requests.
func (ht *HTTPTransport) HandleVerify(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleVerify(w, r)
}

func (ht *HTTPTransport) handleVerify(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	defer func(ctx context.Context) {
		if err != nil {
			log.DebugContext(ctx, "verify request failed", "error", err)
		}
	}(r.Context())

	req, err := DecodeVerifyRequest(r.Body)
	if err != nil {
		_ = http_.WriteError(w, err)

		return fmt.Errorf("decode request: %w", err)
	}

	resp, err := ht.identitySvc.Verify(r.Context(), req)
	if err != nil {
		_ = http_.WriteError(w, err)

		return fmt.Errorf("verify: %w", err)
	}

	if err := http_.WriteJSON(w, http.StatusOK, resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

// HandleAccount processes account lookups. Expects the nullifierHash query parameter.
func (ht *HTTPTransport) HandleAccount(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleAccount(w, r)
}

func (ht *HTTPTransport) handleAccount(w http.ResponseWriter, r *http.Request) (err error) {
	resp, err := ht.identitySvc.GetAccount(r.Context(), r.URL.Query().Get("nullifierHash"))
	if err != nil {
		_ = http_.WriteError(w, err)

		return fmt.Errorf("get account: %w", err)
	}

	if err := http_.WriteJSON(w, http.StatusOK, resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

// HandleSession describes the session of the bearer token.
func (ht *HTTPTransport) HandleSession(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSession(w, r)
}

func (ht *HTTPTransport) handleSession(w http.ResponseWriter, r *http.Request) error {
	info, ok := context_.SessionFromContext(r.Context())
	if !ok {
		return http_.WriteError(w, domain.ErrUnauthorized)
	}

	resp, err := ht.identitySvc.GetSession(r.Context(), info.SessionID)
	if err != nil {
		_ = http_.WriteError(w, err)

		return fmt.Errorf("get session: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, resp)
}

// HandleRevokeSession revokes the session of the bearer token.
func (ht *HTTPTransport) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRevokeSession(w, r)
}

func (ht *HTTPTransport) handleRevokeSession(w http.ResponseWriter, r *http.Request) error {
	info, ok := context_.SessionFromContext(r.Context())
	if !ok {
		return http_.WriteError(w, domain.ErrUnauthorized)
	}

	if err := ht.identitySvc.RevokeSession(r.Context(), info.SessionID); err != nil {
		_ = http_.WriteError(w, err)

		return fmt.Errorf("revoke session: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, domain.StatusResponse{Success: true, Status: "revoked"})
}

// HandleHealth reports whether the stores are reachable.
func (ht *HTTPTransport) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := ht.identitySvc.Check(r.Context()); err != nil {
		ht.log.WarnContext(r.Context(), "health check failed", "error", err)
		_ = http_.WriteJSON(w, http.StatusServiceUnavailable, domain.StatusResponse{Success: false, Status: "unavailable"})

		return
	}

	_ = http_.WriteJSON(w, http.StatusOK, domain.StatusResponse{Success: true, Status: "ok"})
}

package identitysvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/worldfan/internal/domain"
	context_ "github.com/mkrupp/worldfan/internal/infra/context"
	"github.com/mkrupp/worldfan/internal/infra/logging"
	"github.com/mkrupp/worldfan/internal/repo/account"
	"github.com/mkrupp/worldfan/internal/repo/session"
	"github.com/mkrupp/worldfan/internal/svc/identitysvc/verifier"
	"github.com/mkrupp/worldfan/internal/util/encoding"
)

// IdentityService verifies proofs of personhood, reconciles them against
// accounts and issues sessions.
type IdentityService struct {
	Config     IdentityConfig
	Session    SessionConfig
	Verifier   verifier.Verifier
	Reconciler *Reconciler
	Accounts   account.Repository
	Sessions   session.Repository
	Tokens     *TokenSigner
	Log        logging.Logger
	Now        func() time.Time
}

// NewIdentityService creates a new IdentityService from its collaborators.
// Returns an error if the signing key or a repository cannot be created.
func NewIdentityService(
	ctx context.Context,
	cfg IdentityConfig,
	sessionCfg SessionConfig,
	v verifier.Verifier,
	accountFactory account.RepositoryFactory,
	sessionFactory session.RepositoryFactory,
) (*IdentityService, error) {
	signingKey, err := GetPrivateKey(sessionCfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("get private key: %w", err)
	}

	accounts, err := accountFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new account repo: %w", err)
	}

	sessions, err := sessionFactory(ctx)
	if err != nil {
		_ = accounts.Close()

		return nil, fmt.Errorf("new session repo: %w", err)
	}

	return &IdentityService{
		Config:     cfg,
		Session:    sessionCfg,
		Verifier:   v,
		Reconciler: NewReconciler(accounts, time.Now),
		Accounts:   accounts,
		Sessions:   sessions,
		Tokens:     NewTokenSigner(signingKey, sessionCfg.Issuer, time.Now),
		Log:        logging.GetLogger("svc.identitysvc.identity_service"),
		Now:        time.Now,
	}, nil
}

// Verify checks the proof in req with the external verifier and, on success,
// reconciles the account and opens a session.
func (s *IdentityService) Verify(ctx context.Context, req VerifyRequest) (resp domain.VerifyResponse, err error) {
	log := s.Log.With("action", req.Action)

	defer func() {
		switch kind := domain.KindOf(err); {
		case err == nil:
			log.InfoContext(ctx, "verification succeeded", "returning", resp.IsReturningUser)
		case kind.Status < 500:
			log.WarnContext(ctx, "verification rejected", "code", kind.Code, "error", err)
		default:
			log.ErrorContext(ctx, "verification failed", "code", kind.Code, "error", err)
		}
	}()

	proof, patch, err := NormalizeVerifyRequest(req, s.Config)
	if err != nil {
		return resp, fmt.Errorf("normalize request: %w", err)
	}

	log = log.With(logging.Nullifier(proof.NullifierHash))

	result, err := s.Verifier.Verify(ctx, proof)
	if err != nil {
		return resp, fmt.Errorf("verify proof: %w", err)
	}

	acc, returning, err := s.Reconciler.Reconcile(ctx, result, patch)
	if err != nil {
		return resp, fmt.Errorf("reconcile: %w", err)
	}

	resp = domain.VerifyResponse{
		Success:           true,
		Verified:          true,
		NullifierHash:     acc.NullifierHash,
		VerificationLevel: result.VerificationLevel,
		IsReturningUser:   returning,
		UserData:          acc,
	}

	// the account is already written; a lost session must not fail the verification
	sess, token, serr := s.openSession(ctx, acc.NullifierHash, result.VerificationLevel)
	if serr != nil {
		log.WarnContext(ctx, "open session failed", "error", serr)

		return resp, nil
	}

	resp.SessionToken = token
	resp.SessionExpiresAt = &sess.ExpiresAt

	return resp, nil
}

func (s *IdentityService) openSession(
	ctx context.Context, nullifierHash string, level domain.VerificationLevel,
) (*domain.Session, string, error) {
	id, err := encoding.NewID()
	if err != nil {
		return nil, "", fmt.Errorf("new session id: %w", err)
	}

	now := s.Now().UTC().Truncate(time.Second)
	sess := &domain.Session{
		ID:                id,
		NullifierHash:     nullifierHash,
		VerificationLevel: level,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.Session.TTL),
	}

	token, err := s.Tokens.Sign(sess)
	if err != nil {
		return nil, "", err
	}

	if err := s.Sessions.CreateSession(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	return sess, token, nil
}

// GetAccount returns the account for nullifierHash, if any. It never writes.
func (s *IdentityService) GetAccount(ctx context.Context, nullifierHash string) (resp domain.AccountResponse, err error) {
	log := s.Log.With(logging.Nullifier(nullifierHash))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "get account failed", "error", err)
		} else {
			log.DebugContext(ctx, "account looked up", "exists", resp.Exists)
		}
	}()

	nullifierHash, err = NormalizeAccountQuery(nullifierHash)
	if err != nil {
		return resp, fmt.Errorf("normalize query: %w", err)
	}

	acc, ok, err := s.Reconciler.Lookup(ctx, nullifierHash)
	if err != nil {
		return resp, err
	}

	return domain.AccountResponse{Success: true, Exists: ok, UserData: acc}, nil
}

// Authenticate resolves a session token into a live session.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (context_.SessionInfo, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return context_.SessionInfo{}, err
	}

	sess, err := s.Sessions.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return context_.SessionInfo{}, errors.Join(domain.ErrUnauthorized, err)
		}

		return context_.SessionInfo{}, fmt.Errorf("get session: %w", err)
	}

	if sess.NullifierHash != claims.Subject || sess.Expired(s.Now()) {
		return context_.SessionInfo{}, fmt.Errorf("%w: session does not match token", domain.ErrUnauthorized)
	}

	return context_.SessionInfo{SessionID: sess.ID, NullifierHash: sess.NullifierHash}, nil
}

// GetSession describes the session with the given id.
func (s *IdentityService) GetSession(ctx context.Context, id string) (domain.SessionResponse, error) {
	sess, err := s.Sessions.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.SessionResponse{}, errors.Join(domain.ErrUnauthorized, err)
		}

		return domain.SessionResponse{}, fmt.Errorf("get session: %w", err)
	}

	return domain.SessionResponse{
		Success:           true,
		Active:            true,
		NullifierHash:     sess.NullifierHash,
		VerificationLevel: sess.VerificationLevel,
		ExpiresAt:         sess.ExpiresAt,
	}, nil
}

// RevokeSession ends the session with the given id. Revoking twice is not an error.
func (s *IdentityService) RevokeSession(ctx context.Context, id string) (err error) {
	defer func() {
		if err != nil {
			s.Log.ErrorContext(ctx, "revoke session failed", "error", err)
		} else {
			s.Log.DebugContext(ctx, "session revoked")
		}
	}()

	if err := s.Sessions.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// Check probes the account and session stores.
func (s *IdentityService) Check(ctx context.Context) error {
	if err := s.Accounts.Ping(ctx); err != nil {
		return fmt.Errorf("account store: %w", err)
	}

	if err := s.Sessions.Ping(ctx); err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	return nil
}

// Close releases resources held by the service, such as database connections.
func (s *IdentityService) Close() error {
	return errors.Join(s.Accounts.Close(), s.Sessions.Close())
}

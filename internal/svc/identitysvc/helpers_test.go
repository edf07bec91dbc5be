package identitysvc_test

import (
	"context"
	"crypto/rsa"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkrupp/worldfan/internal/domain"
	"github.com/mkrupp/worldfan/internal/infra/logging"
	"github.com/mkrupp/worldfan/internal/repo/account"
	"github.com/mkrupp/worldfan/internal/repo/session"
	"github.com/mkrupp/worldfan/internal/svc/identitysvc"
)

//nolint:gochecknoglobals
var testKey = sync.OnceValues(func() (*rsa.PrivateKey, error) {
	return identitysvc.GeneratePrivateKey(identitysvc.DefaultKeySize)
})

// mockVerifier implements verifier.Verifier for testing.
type mockVerifier struct {
	calls  atomic.Int32
	reject string // detail of a rejection; empty accepts
	err    error
}

func (m *mockVerifier) Verify(_ context.Context, proof domain.Proof) (domain.VerificationResult, error) {
	m.calls.Add(1)

	result := domain.VerificationResult{
		NullifierHash:     proof.NullifierHash,
		VerificationLevel: proof.VerificationLevel,
		Action:            proof.Action,
	}

	switch {
	case m.err != nil:
		return result, m.err
	case m.reject != "":
		result.Detail = m.reject

		return result, domain.ErrVerificationFailed
	}

	result.Verified = true

	return result, nil
}

// failingSessions implements session.Repository and fails every write.
type failingSessions struct {
	*session.MemorySessionRepository
}

func (failingSessions) CreateSession(context.Context, *domain.Session) error {
	return domain.ErrStoreUnavailable
}

// stepClock advances by one second on every reading.
type stepClock struct {
	base  time.Time
	ticks atomic.Int64
}

func (c *stepClock) Now() time.Time {
	return c.base.Add(time.Duration(c.ticks.Add(1)) * time.Second)
}

type fixture struct {
	svc      *identitysvc.IdentityService
	verifier *mockVerifier
	accounts *account.MemoryAccountRepository
	sessions *session.MemorySessionRepository
	clock    *stepClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := testKey()
	require.NoError(t, err)

	clock := &stepClock{base: time.Now().UTC().Truncate(time.Second)}
	accounts := account.NewMemoryAccountRepository()
	sessions := session.NewMemorySessionRepository(clock.Now)
	v := &mockVerifier{}

	svc := &identitysvc.IdentityService{
		Config:     identitysvc.IdentityConfig{},
		Session:    identitysvc.SessionConfig{TTL: time.Hour, Issuer: "test"},
		Verifier:   v,
		Reconciler: identitysvc.NewReconciler(accounts, clock.Now),
		Accounts:   accounts,
		Sessions:   sessions,
		Tokens:     identitysvc.NewTokenSigner(key, "test", clock.Now),
		Log:        logging.NewNopLogger(),
		Now:        clock.Now,
	}

	return &fixture{svc: svc, verifier: v, accounts: accounts, sessions: sessions, clock: clock}
}

func ptr[T any](v T) *T { return &v }

func signupRequest(hash string) identitysvc.VerifyRequest {
	return identitysvc.VerifyRequest{
		Proof: &identitysvc.ProofPayload{
			NullifierHash:     hash,
			MerkleRoot:        "m1",
			Proof:             "p1",
			VerificationLevel: "orb",
		},
		Action: "signup",
	}
}

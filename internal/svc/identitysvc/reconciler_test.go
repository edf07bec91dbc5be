package identitysvc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/worldfan/internal/domain"
	"github.com/mkrupp/worldfan/internal/repo/account"
	"github.com/mkrupp/worldfan/internal/svc/identitysvc"
)

func verified(hash string) domain.VerificationResult {
	return domain.VerificationResult{
		Verified:          true,
		NullifierHash:     hash,
		VerificationLevel: domain.VerificationLevelOrb,
		Action:            "signup",
	}
}

// brokenAccounts implements account.Repository with a store that cannot be reached.
type brokenAccounts struct {
	upserts int
}

func (b *brokenAccounts) GetAccount(context.Context, string) (*domain.UserAccount, bool, error) {
	return nil, false, errors.Join(domain.ErrStoreUnavailable, errors.New("dial tcp: connection refused"))
}

func (b *brokenAccounts) UpsertAccount(context.Context, string, account.MutateFunc) (*domain.UserAccount, bool, error) {
	b.upserts++

	return nil, false, errors.Join(domain.ErrStoreUnavailable, errors.New("dial tcp: connection refused"))
}

func (b *brokenAccounts) Ping(context.Context) error { return domain.ErrStoreUnavailable }
func (b *brokenAccounts) Close() error               { return nil }

func TestReconcile_IsIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	r := identitysvc.NewReconciler(account.NewMemoryAccountRepository(), func() time.Time { return now })
	patch := domain.ProfilePatch{
		Email:       ptr("fan@example.com"),
		Preferences: &domain.PreferencesPatch{Cities: ptr([]string{"Berlin"})},
	}

	first, returning, err := r.Reconcile(context.Background(), verified("abc123"), patch)
	require.NoError(t, err)
	assert.False(t, returning)

	second, returning, err := r.Reconcile(context.Background(), verified("abc123"), patch)
	require.NoError(t, err)
	assert.True(t, returning)
	assert.Equal(t, first, second)
}

func TestReconcile_ConcurrentCallsCreateOneAccount(t *testing.T) {
	t.Parallel()

	const callers = 32

	clock := &stepClock{base: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	repo := account.NewMemoryAccountRepository()
	r := identitysvc.NewReconciler(repo, clock.Now)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
	)

	for range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, returning, err := r.Reconcile(context.Background(), verified("abc123"), domain.ProfilePatch{})
			if !assert.NoError(t, err) {
				return
			}

			if !returning {
				mu.Lock()
				creates++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	require.Equal(t, 1, creates)

	acc, ok, err := repo.GetAccount(context.Background(), "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, clock.base.Add(time.Second), acc.CreatedAt, "createdAt is the first caller's clock reading")
	assert.Equal(t, clock.base.Add(callers*time.Second), acc.LastLoginAt)
}

func TestReconcile_PartialUpdateKeepsOtherFields(t *testing.T) {
	t.Parallel()

	clock := &stepClock{base: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	r := identitysvc.NewReconciler(account.NewMemoryAccountRepository(), clock.Now)

	created, _, err := r.Reconcile(context.Background(), verified("abc123"), domain.ProfilePatch{
		Username: ptr("fan"),
		Email:    ptr("fan@example.com"),
		Preferences: &domain.PreferencesPatch{
			Cities:        ptr([]string{"Berlin", "Paris"}),
			Genres:        ptr([]string{"Jazz"}),
			PriceRange:    ptr("50-100"),
			Notifications: ptr(true),
		},
	})
	require.NoError(t, err)

	updated, returning, err := r.Reconcile(context.Background(), verified("abc123"), domain.ProfilePatch{
		Preferences: &domain.PreferencesPatch{Genres: ptr([]string{"Rock"})},
	})
	require.NoError(t, err)
	require.True(t, returning)

	assert.Equal(t, []string{"Rock"}, updated.Preferences.Genres)
	assert.Equal(t, created.Preferences.Cities, updated.Preferences.Cities)
	assert.Equal(t, created.Email, updated.Email)
	assert.Equal(t, created.Username, updated.Username)
	assert.Equal(t, "50-100", updated.Preferences.PriceRange)
	assert.True(t, updated.Preferences.Notifications)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.LastLoginAt.After(created.LastLoginAt))
}

func TestReconcile_LastLoginNeverMovesBackwards(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	r := identitysvc.NewReconciler(account.NewMemoryAccountRepository(), func() time.Time { return now })

	_, _, err := r.Reconcile(context.Background(), verified("abc123"), domain.ProfilePatch{})
	require.NoError(t, err)

	now = now.Add(-time.Hour)

	acc, _, err := r.Reconcile(context.Background(), verified("abc123"), domain.ProfilePatch{})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), acc.LastLoginAt)
}

func TestReconcile_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unverified result writes nothing", func(t *testing.T) {
		t.Parallel()

		repo := account.NewMemoryAccountRepository()
		res := verified("abc123")
		res.Verified = false

		_, _, err := identitysvc.NewReconciler(repo, nil).Reconcile(context.Background(), res, domain.ProfilePatch{})
		require.ErrorIs(t, err, domain.ErrVerificationFailed)

		_, ok, _ := repo.GetAccount(context.Background(), "abc123")
		assert.False(t, ok)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		_, _, err := identitysvc.NewReconciler(account.NewMemoryAccountRepository(), nil).
			Reconcile(context.Background(), verified(""), domain.ProfilePatch{})
		require.ErrorIs(t, err, domain.ErrMissingKey)
	})

	t.Run("store unavailable", func(t *testing.T) {
		t.Parallel()

		repo := &brokenAccounts{}
		_, _, err := identitysvc.NewReconciler(repo, nil).Reconcile(context.Background(), verified("abc123"), domain.ProfilePatch{})
		require.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.True(t, domain.KindOf(err).Retryable)
		assert.Equal(t, 1, repo.upserts)
	})
}

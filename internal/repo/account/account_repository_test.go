package account_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/worldfan/internal/domain"
	"github.com/mkrupp/worldfan/internal/repo/account"
)

type repoFactory func(t *testing.T) account.Repository

func backends() map[string]repoFactory {
	return map[string]repoFactory{
		"memory": func(t *testing.T) account.Repository {
			t.Helper()

			return account.NewMemoryAccountRepository()
		},
		"sqlite": func(t *testing.T) account.Repository {
			t.Helper()

			repo, err := account.NewSQLiteAccountRepository(context.Background(), account.SQLiteAccountRepositoryConfig{
				DatabasePath: filepath.Join(t.TempDir(), "accounts.db"),
				BusyTimeout:  5 * time.Second,
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = repo.Close() })

			return repo
		},
	}
}

func login(now time.Time, level domain.VerificationLevel, patch domain.ProfilePatch) account.MutateFunc {
	return func(current *domain.UserAccount) (*domain.UserAccount, error) {
		if current == nil {
			return domain.NewUserAccount(domain.VerificationResult{
				Verified:          true,
				NullifierHash:     "ignored",
				VerificationLevel: level,
			}, patch, now), nil
		}

		current.LastLoginAt = now
		current.VerificationLevel = level
		current.Apply(patch)

		return current, nil
	}
}

func TestRepository_GetAbsent(t *testing.T) {
	t.Parallel()

	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			acc, ok, err := newRepo(t).GetAccount(context.Background(), "abc123")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, acc)
		})
	}
}

func TestRepository_UpsertCreatesThenUpdates(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	t1 := t0.Add(time.Hour)
	email := "fan@example.com"

	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := newRepo(t)

			created, existed, err := repo.UpsertAccount(ctx, "abc123",
				login(t0, domain.VerificationLevelDevice, domain.ProfilePatch{Email: &email}))
			require.NoError(t, err)
			assert.False(t, existed)
			assert.Equal(t, "abc123", created.NullifierHash)
			assert.Equal(t, t0.Truncate(time.Microsecond), created.CreatedAt)
			assert.Equal(t, created.CreatedAt, created.LastLoginAt)

			updated, existed, err := repo.UpsertAccount(ctx, "abc123",
				login(t1, domain.VerificationLevelOrb, domain.ProfilePatch{}))
			require.NoError(t, err)
			assert.True(t, existed)
			assert.Equal(t, created.CreatedAt, updated.CreatedAt)
			assert.Equal(t, t1.Truncate(time.Microsecond), updated.LastLoginAt)
			assert.Equal(t, domain.VerificationLevelOrb, updated.VerificationLevel)
			assert.Equal(t, email, updated.Email)

			got, ok, err := repo.GetAccount(ctx, "abc123")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, updated, got)
		})
	}
}

func TestRepository_IdentityFieldsAreImmutable(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := newRepo(t)

			_, _, err := repo.UpsertAccount(ctx, "abc123", login(t0, domain.VerificationLevelDevice, domain.ProfilePatch{}))
			require.NoError(t, err)

			stored, _, err := repo.UpsertAccount(ctx, "abc123", func(current *domain.UserAccount) (*domain.UserAccount, error) {
				current.NullifierHash = "other"
				current.CreatedAt = t0.Add(24 * time.Hour)

				return current, nil
			})
			require.NoError(t, err)
			assert.Equal(t, "abc123", stored.NullifierHash)
			assert.Equal(t, t0, stored.CreatedAt)

			_, ok, err := repo.GetAccount(ctx, "other")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRepository_MutateErrorLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := newRepo(t)

			_, _, err := repo.UpsertAccount(ctx, "abc123", func(*domain.UserAccount) (*domain.UserAccount, error) {
				return nil, boom
			})
			require.ErrorIs(t, err, boom)
			assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)

			_, ok, err := repo.GetAccount(ctx, "abc123")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRepository_ConcurrentUpsertsAreSerialized(t *testing.T) {
	t.Parallel()

	const writers = 16

	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := newRepo(t)

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				created int
			)

			for range writers {
				wg.Add(1)

				go func() {
					defer wg.Done()

					_, existed, err := repo.UpsertAccount(ctx, "abc123", func(current *domain.UserAccount) (*domain.UserAccount, error) {
						if current == nil {
							current = &domain.UserAccount{CreatedAt: time.Now(), LastLoginAt: time.Now()}
						}

						current.Username += "x"

						return current, nil
					})
					if !assert.NoError(t, err) {
						return
					}

					if !existed {
						mu.Lock()
						created++
						mu.Unlock()
					}
				}()
			}

			wg.Wait()

			assert.Equal(t, 1, created)

			acc, ok, err := repo.GetAccount(ctx, "abc123")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Len(t, acc.Username, writers)
		})
	}
}

func TestSQLiteAccountRepository_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := account.SQLiteAccountRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "accounts.db"),
		BusyTimeout:  time.Second,
	}

	repo, err := account.SQLiteAccountRepositoryFactory(cfg)(ctx)
	require.NoError(t, err)

	genres := []string{"Techno", "House"}
	_, _, err = repo.UpsertAccount(ctx, "abc123", login(time.Now(), domain.VerificationLevelOrb, domain.ProfilePatch{
		Preferences: &domain.PreferencesPatch{Genres: &genres},
	}))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = account.NewSQLiteAccountRepository(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	acc, ok, err := repo.GetAccount(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, genres, acc.Preferences.Genres)
	assert.Equal(t, []string{}, acc.Preferences.Cities)
	require.NoError(t, repo.Ping(ctx))
}

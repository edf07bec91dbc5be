package account

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/worldfan/internal/domain"
)

const (
	lockQuery   = `(?s)^SELECT\s+pg_advisory_xact_lock\(hashtextextended\(\$1,\s*0\)\)$`
	selectQuery = `(?s)^SELECT\s+nullifier_hash,.*FROM\s+accounts\s+WHERE\s+nullifier_hash\s*=\s*\$1$`
	insertQuery = `(?s)^INSERT\s+INTO\s+accounts.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4::jsonb,\s*\$5,\s*\$6,\s*\$7\)$`
	updateQuery = `(?s)^UPDATE\s+accounts\s+SET.*WHERE\s+nullifier_hash\s*=\s*\$1$`
)

var accountColumns = []string{
	"nullifier_hash", "username", "email", "preferences", "verification_level", "created_at", "last_login_at",
}

func newPostgresWithMock(t *testing.T) (*PostgresAccountRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresAccountRepository(db), mock
}

func TestPostgresUpsert_InsertsNewAccount(t *testing.T) {
	t.Parallel()

	repo, mock := newPostgresWithMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 999, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs("abc123").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectQuery).WithArgs("abc123").WillReturnRows(sqlmock.NewRows(accountColumns))
	mock.ExpectExec(insertQuery).
		WithArgs("abc123", "", "", sqlmock.AnyArg(), "orb", now.Truncate(time.Microsecond), now.Truncate(time.Microsecond)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	acc, existed, err := repo.UpsertAccount(context.Background(), "abc123", func(current *domain.UserAccount) (*domain.UserAccount, error) {
		assert.Nil(t, current)

		return domain.NewUserAccount(domain.VerificationResult{
			NullifierHash:     "abc123",
			VerificationLevel: domain.VerificationLevelOrb,
		}, domain.ProfilePatch{}, now), nil
	})
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "abc123", acc.NullifierHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsert_UpdatesExistingAccount(t *testing.T) {
	t.Parallel()

	repo, mock := newPostgresWithMock(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(48 * time.Hour)

	rows := sqlmock.NewRows(accountColumns).AddRow(
		"abc123", "fan", "fan@example.com", []byte(`{"cities":["Berlin"],"genres":null,"notifications":true}`),
		"device", created, created,
	)

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs("abc123").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectQuery).WithArgs("abc123").WillReturnRows(rows)
	mock.ExpectExec(updateQuery).
		WithArgs("abc123", "fan", "fan@example.com", sqlmock.AnyArg(), "orb", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	acc, existed, err := repo.UpsertAccount(context.Background(), "abc123", func(current *domain.UserAccount) (*domain.UserAccount, error) {
		require.NotNil(t, current)
		assert.Equal(t, []string{"Berlin"}, current.Preferences.Cities)
		assert.Equal(t, []string{}, current.Preferences.Genres)

		current.LastLoginAt = now
		current.VerificationLevel = domain.VerificationLevelOrb

		return current, nil
	})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, created, acc.CreatedAt)
	assert.Equal(t, now, acc.LastLoginAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsert_MutateErrorRollsBack(t *testing.T) {
	t.Parallel()

	repo, mock := newPostgresWithMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs("abc123").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectQuery).WithArgs("abc123").WillReturnRows(sqlmock.NewRows(accountColumns))
	mock.ExpectRollback()

	_, _, err := repo.UpsertAccount(context.Background(), "abc123", func(*domain.UserAccount) (*domain.UserAccount, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsert_DatabaseErrorIsStoreUnavailable(t *testing.T) {
	t.Parallel()

	repo, mock := newPostgresWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs("abc123").WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	called := false
	_, _, err := repo.UpsertAccount(context.Background(), "abc123", func(*domain.UserAccount) (*domain.UserAccount, error) {
		called = true

		return nil, nil
	})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetAccount(t *testing.T) {
	t.Parallel()

	repo, mock := newPostgresWithMock(t)

	mock.ExpectQuery(selectQuery).WithArgs("missing").WillReturnRows(sqlmock.NewRows(accountColumns))
	mock.ExpectQuery(selectQuery).WithArgs("broken").WillReturnError(errors.New("db down"))

	acc, ok, err := repo.GetAccount(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, acc)

	_, _, err = repo.GetAccount(context.Background(), "broken")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

//nolint:paralleltest
func TestRunMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		assert.Equal(t, ".", dir)
		assert.Empty(t, opts)

		return nil
	}
	require.NoError(t, RunMigrations(context.Background(), db))

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	require.ErrorIs(t, RunMigrations(context.Background(), db), domain.ErrStoreUnavailable)
}

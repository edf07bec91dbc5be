package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/worldfan/internal/domain"
	"github.com/mkrupp/worldfan/internal/infra/dbx"
	"github.com/mkrupp/worldfan/internal/infra/logging"
)

var (
	errNilAccount = errors.New("mutate returned no account")
	errConflict   = errors.New("account written concurrently")
)

// SQLiteAccountRepositoryConfig holds configuration for the SQLite account repository.
type SQLiteAccountRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/identitysvc.db"`

	// BusyTimeout is how long a writer waits for a lock held by another connection
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT" default:"5s"`
}

// SQLiteAccountRepository implements Repository using SQLite as the storage backend.
type SQLiteAccountRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteAccountRepository)(nil)

// SQLiteAccountRepositoryFactory creates a factory function that returns a new SQLiteAccountRepository.
// The factory function implements the RepositoryFactory type.
func SQLiteAccountRepositoryFactory(cfg SQLiteAccountRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewSQLiteAccountRepository(ctx, cfg)
	}
}

// NewSQLiteAccountRepository creates a new SQLiteAccountRepository with the given configuration.
// It initializes the database connection and creates the schema if needed.
// Returns an error if database connection or initialization fails.
func NewSQLiteAccountRepository(ctx context.Context, cfg SQLiteAccountRepositoryConfig) (*SQLiteAccountRepository, error) {
	log := logging.GetLogger("repo.account.sqlite").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", sqliteDSN(cfg))
	if err != nil {
		return nil, errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("open db: %w", err))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("ping db: %w", err))
	}

	if err := initializeSQLiteDB(ctx, db); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	log.DebugContext(ctx, "account repository ready")

	return &SQLiteAccountRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

// sqliteDSN makes every transaction take the write lock up front, so a second
// process cannot interleave between our read and our write.
func sqliteDSN(cfg SQLiteAccountRepositoryConfig) string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	params.Add("_txlock", "immediate")

	sep := "?"
	if strings.Contains(cfg.DatabasePath, "?") {
		sep = "&"
	}

	return cfg.DatabasePath + sep + params.Encode()
}

func initializeSQLiteDB(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			nullifier_hash     TEXT    PRIMARY KEY,
			username           TEXT    NOT NULL DEFAULT '',
			email              TEXT    NOT NULL DEFAULT '',
			preferences        TEXT    NOT NULL DEFAULT '{}',
			verification_level TEXT    NOT NULL,
			created_at         INTEGER NOT NULL,
			last_login_at      INTEGER NOT NULL
		)
	`); err != nil {
		return errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("create schema: %w", err))
	}

	return nil
}

// GetAccount implements Repository.GetAccount using SQLite.
func (r *SQLiteAccountRepository) GetAccount(ctx context.Context, nullifierHash string) (*domain.UserAccount, bool, error) {
	acc, err := r.selectAccount(ctx, r.db, nullifierHash)
	if err != nil {
		return nil, false, err
	}

	return acc, acc != nil, nil
}

// UpsertAccount implements Repository.UpsertAccount using SQLite.
func (r *SQLiteAccountRepository) UpsertAccount(
	ctx context.Context, nullifierHash string, mutate MutateFunc,
) (*domain.UserAccount, bool, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	acc, existed, err := r.upsertOnce(ctx, nullifierHash, mutate)
	if errors.Is(err, errConflict) {
		// another process inserted the key between our read and write
		r.log.WarnContext(ctx, "retrying account upsert after conflict", logging.Nullifier(nullifierHash))

		acc, existed, err = r.upsertOnce(ctx, nullifierHash, mutate)
	}

	return acc, existed, err
}

func (r *SQLiteAccountRepository) upsertOnce(
	ctx context.Context, nullifierHash string, mutate MutateFunc,
) (stored *domain.UserAccount, existed bool, err error) {
	var mutateErr error

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := r.selectAccount(ctx, tx, nullifierHash)
		if err != nil {
			return err
		}

		existed = current != nil

		var arg *domain.UserAccount
		if current != nil {
			arg = current.Clone()
		}

		next, err := mutate(arg)
		if err != nil {
			mutateErr = err

			return err
		}

		if next == nil {
			mutateErr = errNilAccount

			return mutateErr
		}

		stored = prepareForStore(nullifierHash, current, next)

		if existed {
			return r.updateAccount(ctx, tx, stored)
		}

		return r.insertAccount(ctx, tx, stored)
	})

	switch {
	case mutateErr != nil:
		return nil, false, mutateErr
	case errors.Is(err, errConflict), errors.Is(err, domain.ErrStoreUnavailable):
		return nil, false, err
	case err != nil:
		return nil, false, errors.Join(domain.ErrStoreUnavailable, err)
	}

	return stored, existed, nil
}

func (r *SQLiteAccountRepository) selectAccount(ctx context.Context, q dbx.DBTX, nullifierHash string) (*domain.UserAccount, error) {
	var (
		acc                  domain.UserAccount
		prefs                string
		level                string
		createdAt, lastLogin int64
	)

	err := q.QueryRowContext(ctx,
		`SELECT nullifier_hash, username, email, preferences, verification_level, created_at, last_login_at
		   FROM accounts WHERE nullifier_hash = ?`,
		nullifierHash,
	).Scan(&acc.NullifierHash, &acc.Username, &acc.Email, &prefs, &level, &createdAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil //nolint:nilnil
		}

		return nil, errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("query account: %w", err))
	}

	if acc.Preferences, err = decodePreferences([]byte(prefs)); err != nil {
		return nil, errors.Join(domain.ErrStoreUnavailable, err)
	}

	acc.VerificationLevel = domain.VerificationLevel(level)
	acc.CreatedAt = time.UnixMicro(createdAt).UTC()
	acc.LastLoginAt = time.UnixMicro(lastLogin).UTC()

	return &acc, nil
}

func (r *SQLiteAccountRepository) insertAccount(ctx context.Context, tx dbx.DBTX, acc *domain.UserAccount) error {
	prefs, err := encodePreferences(acc.Preferences)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts
			(nullifier_hash, username, email, preferences, verification_level, created_at, last_login_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		acc.NullifierHash,
		acc.Username,
		acc.Email,
		prefs,
		string(acc.VerificationLevel),
		acc.CreatedAt.UnixMicro(),
		acc.LastLoginAt.UnixMicro(),
	)
	if err != nil {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) {
			switch liteErr.Code() {
			case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
				fallthrough
			case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
				err = errors.Join(errConflict, err)
			default:
				break
			}
		}

		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

func (r *SQLiteAccountRepository) updateAccount(ctx context.Context, tx dbx.DBTX, acc *domain.UserAccount) error {
	prefs, err := encodePreferences(acc.Preferences)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts
		    SET username = ?, email = ?, preferences = ?, verification_level = ?, last_login_at = ?
		  WHERE nullifier_hash = ?`,
		acc.Username,
		acc.Email,
		prefs,
		string(acc.VerificationLevel),
		acc.LastLoginAt.UnixMicro(),
		acc.NullifierHash,
	); err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	return nil
}

// Ping implements Repository.Ping.
func (r *SQLiteAccountRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("ping db: %w", err))
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteAccountRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

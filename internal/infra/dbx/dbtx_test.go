package dbx_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mkrupp/worldfan/internal/infra/dbx"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dbx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)

	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))

	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	t.Parallel()

	db := setupDB(t)

	err := dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db))
}

func TestWithTx_RollbackOnError(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	boom := errors.New("boom")

	err := dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('fail')`)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, countRows(t, db))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	t.Parallel()

	db := setupDB(t)

	require.Panics(t, func() {
		_ = dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
			require.NoError(t, err)
			panic("kaboom")
		})
	})
	require.Equal(t, 0, countRows(t, db))
}

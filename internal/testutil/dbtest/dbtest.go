// Package dbtest provides throwaway SQLite databases for package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/edgeflare/dbapi/pkg/sqldb"
	"github.com/stretchr/testify/require"
)

// Open creates a file-backed SQLite database under t.TempDir, runs each statement of ddl
// and closes the pool when the test ends.
func Open(t testing.TB, ddl ...string) sqldb.DB {
	t.Helper()
	ctx := context.Background()

	db, err := sqldb.Open(ctx, sqldb.Config{
		Driver:   "sqlite3",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		MaxConns: 8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	Exec(t, db, ddl...)
	return db
}

// Exec runs statements on a single connection of db.
func Exec(t testing.TB, db sqldb.DB, stmts ...string) {
	t.Helper()
	if len(stmts) == 0 {
		return
	}
	ctx := context.Background()

	conn, err := db.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	for _, s := range stmts {
		_, err := conn.Exec(ctx, s)
		require.NoError(t, err, s)
	}
}

// Count returns SELECT COUNT(*) for query.
func Count(t testing.TB, db sqldb.DB, query string, args ...any) int64 {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next(), "no rows for %s", query)
	var n int64
	require.NoError(t, rows.Scan(&n))
	return n
}

// Package pgtest opens PostgreSQL databases for package tests. Tests using it are skipped
// unless TEST_DATABASE holds a connection string.
package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/edgeflare/dbapi/pkg/sqldb"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

const EnvVar = "TEST_DATABASE"

// ParseConfig returns a pool config for TEST_DATABASE that logs server notices to t.
func ParseConfig(t testing.TB) *pgxpool.Config {
	t.Helper()
	connString := os.Getenv(EnvVar)
	if connString == "" {
		t.Skipf("%s not set", EnvVar)
	}

	config, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)

	config.ConnConfig.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		t.Logf("PostgreSQL %s: %s", n.Severity, n.Message)
	}
	return config
}

// Open returns a pool whose connections use a schema of their own, created empty and dropped
// when the test ends, so that tests never see each other's tables. ddl runs in that schema.
func Open(t testing.TB, ddl ...string) sqldb.DB {
	t.Helper()
	ctx := context.Background()
	config := ParseConfig(t)

	schema := "dbapi_test_" + uuid.NewString()[:8]
	ident := pgx.Identifier{schema}.Sanitize()

	admin, err := pgx.ConnectConfig(ctx, config.ConnConfig.Copy())
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+ident)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := admin.Exec(ctx, "DROP SCHEMA "+ident+" CASCADE")
		require.NoError(t, err)
		require.NoError(t, admin.Close(ctx))
	})

	config.ConnConfig.RuntimeParams["search_path"] = schema
	config.MaxConns = 16
	pool, err := pgxpool.NewWithConfig(ctx, config)
	require.NoError(t, err)
	// registered after the schema cleanup, so it runs first
	t.Cleanup(pool.Close)

	db := sqldb.NewPgx(pool)
	conn, err := db.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()
	for _, s := range ddl {
		_, err := conn.Exec(ctx, s)
		require.NoError(t, err, s)
	}
	return db
}

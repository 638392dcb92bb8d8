// Package sqldb abstracts the relational stores the API can sit on. It exposes a small
// connection-scoped interface implemented on top of pgxpool for PostgreSQL and database/sql
// for SQLite, MySQL and SQL Server.
package sqldb

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Querier executes statements. It is satisfied by both connections and transactions so that
// callers can run the same code inside or outside a transaction.
type Querier interface {
	// Exec executes a statement and returns the number of rows it affected.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// Query executes a statement that returns rows. The caller must Close the result.
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Rows iterates over a query result.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	// Columns describes the result columns in store order.
	Columns() ([]ColumnType, error)
	// Values returns the current row decoded into the driver's native Go types.
	Values() ([]any, error)
	Err() error
	Close()
}

// ColumnType names a result column and its database type.
type ColumnType struct {
	Name         string
	DatabaseType string
}

// Tx is a transaction on a single connection.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is a connection checked out of the pool. Release must be called exactly once.
type Conn interface {
	Querier
	// BeginSerializable starts a transaction at the store's strongest isolation level.
	BeginSerializable(ctx context.Context) (Tx, error)
	Release()
}

// DB is a connection pool bound to one dialect.
type DB interface {
	Dialect() Dialect
	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config describes how to open a DB.
type Config struct {
	Driver          string
	DSN             string
	MaxConns        int
	ConnMaxLifetime time.Duration
}

var ErrUnknownDriver = errors.New("unknown database driver")

// Open creates a pool for cfg.Driver and verifies it with a ping.
func Open(ctx context.Context, cfg Config) (DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sqldb: dsn must be provided")
	}

	var (
		db  DB
		err error
	)
	switch cfg.Driver {
	case "postgres", "pgx":
		db, err = openPgx(ctx, cfg)
	case "sqlite3", "sqlite":
		db, err = openStd(cfg, "sqlite3", sqliteDSN(cfg.DSN), SQLite)
	case "mysql":
		db, err = openStd(cfg, "mysql", cfg.DSN, MySQL)
	case "sqlserver", "mssql":
		db, err = openStd(cfg, "sqlserver", cfg.DSN, SQLServer)
	default:
		return nil, fmt.Errorf("sqldb: %w %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("sqldb: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqldb: ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// ScanValues collects every remaining row of rows as native driver values together with the
// result's column types. rows is closed on return.
func ScanValues(rows Rows) ([]ColumnType, [][]any, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns: %w", err)
	}

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}

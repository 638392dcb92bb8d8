package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var (
	_ DB   = (*stdDB)(nil)
	_ Conn = (*stdConn)(nil)
	_ Tx   = (*stdTx)(nil)
	_ Rows = (*stdRows)(nil)
)

// sqliteBusyTimeoutMS bounds how long a writer waits for the database lock.
const sqliteBusyTimeoutMS = 5000

type stdDB struct {
	db      *sql.DB
	dialect Dialect
}

// NewStd wraps a database/sql pool that speaks dialect.
func NewStd(db *sql.DB, dialect Dialect) DB {
	return &stdDB{db: db, dialect: dialect}
}

func openStd(cfg Config, driverName, dsn string, dialect Dialect) (DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if dialect == SQLite && isSQLiteMemory(dsn) {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	return &stdDB{db: db, dialect: dialect}, nil
}

// sqliteDSN makes writers take the database lock at BEGIN and wait for it instead of failing
// at first contention, which serializes concurrent insert transactions.
func sqliteDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "_txlock=") {
		params = append(params, "_txlock=immediate")
	}
	if !strings.Contains(dsn, "_busy_timeout=") && !strings.Contains(dsn, "_timeout=") {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", sqliteBusyTimeoutMS))
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func isSQLiteMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func (db *stdDB) Dialect() Dialect { return db.dialect }

func (db *stdDB) Acquire(ctx context.Context) (Conn, error) {
	c, err := db.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &stdConn{conn: c}, nil
}

func (db *stdDB) Ping(ctx context.Context) error { return db.db.PingContext(ctx) }

func (db *stdDB) Close() error { return db.db.Close() }

type stdConn struct {
	conn *sql.Conn
}

func (c *stdConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *stdConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &stdRows{rows: rows}, nil
}

func (c *stdConn) BeginSerializable(ctx context.Context) (Tx, error) {
	tx, err := c.conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	return &stdTx{tx: tx}, nil
}

func (c *stdConn) Release() { c.conn.Close() }

type stdTx struct {
	tx *sql.Tx
}

func (t *stdTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *stdTx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &stdRows{rows: rows}, nil
}

func (t *stdTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *stdTx) Rollback(context.Context) error { return t.tx.Rollback() }

type stdRows struct {
	rows *sql.Rows
}

func (r *stdRows) Next() bool             { return r.rows.Next() }
func (r *stdRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *stdRows) Err() error             { return r.rows.Err() }
func (r *stdRows) Close()                 { r.rows.Close() }

func (r *stdRows) Columns() ([]ColumnType, error) {
	types, err := r.rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]ColumnType, len(types))
	for i, ct := range types {
		cols[i] = ColumnType{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
	}
	return cols, nil
}

func (r *stdRows) Values() ([]any, error) {
	names, err := r.rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, nil
}

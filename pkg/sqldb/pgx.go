package sqldb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ DB   = (*pgxDB)(nil)
	_ Conn = (*pgxConn)(nil)
	_ Tx   = (*pgxTx)(nil)
	_ Rows = (*pgxRows)(nil)
)

type pgxDB struct {
	pool *pgxpool.Pool
}

// NewPgx wraps an existing pool. The caller keeps ownership of pool unless Close is called.
func NewPgx(pool *pgxpool.Pool) DB {
	return &pgxDB{pool: pool}
}

func openPgx(ctx context.Context, cfg Config) (DB, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	return &pgxDB{pool: pool}, nil
}

func (db *pgxDB) Dialect() Dialect { return Postgres }

func (db *pgxDB) Acquire(ctx context.Context) (Conn, error) {
	c, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxConn{conn: c}, nil
}

func (db *pgxDB) Ping(ctx context.Context) error { return db.pool.Ping(ctx) }

func (db *pgxDB) Close() error {
	db.pool.Close()
	return nil
}

type pgxConn struct {
	conn *pgxpool.Conn
}

func (c *pgxConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *pgxConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func (c *pgxConn) BeginSerializable(ctx context.Context) (Tx, error) {
	tx, err := c.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	return &pgxTx{tx: tx}, nil
}

func (c *pgxConn) Release() { c.conn.Release() }

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgxTx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func (t *pgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Values() ([]any, error) { return r.rows.Values() }
func (r *pgxRows) Err() error             { return r.rows.Err() }
func (r *pgxRows) Close()                 { r.rows.Close() }

func (r *pgxRows) Columns() ([]ColumnType, error) {
	fds := r.rows.FieldDescriptions()
	cols := make([]ColumnType, len(fds))
	conn := r.rows.Conn()
	for i, fd := range fds {
		cols[i] = ColumnType{Name: fd.Name}
		if conn == nil {
			continue
		}
		if t, ok := conn.TypeMap().TypeForOID(fd.DataTypeOID); ok {
			cols[i].DatabaseType = t.Name
		}
	}
	return cols, nil
}

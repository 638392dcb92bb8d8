// Package crud executes list, insert, update and delete operations against tables whose shape
// is discovered from the catalog on every call.
package crud

import (
	"context"
	"fmt"

	"github.com/edgeflare/dbapi/pkg/schema"
	"github.com/edgeflare/dbapi/pkg/sqldb"
	"github.com/edgeflare/dbapi/pkg/value"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/edgeflare/dbapi/pkg/crud"

// Engine runs dynamic queries against a DB. It is safe for concurrent use.
type Engine struct {
	db     sqldb.DB
	logger *zap.Logger
	tracer trace.Tracer
	retry  RetryPolicy
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithRetryPolicy controls how inserts aborted by the store's serializable isolation are
// retried.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

func NewEngine(db sqldb.DB, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
		retry:  DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TableInfo is the catalog view of one table.
type TableInfo struct {
	Name     string          `json:"name"`
	Columns  []schema.Column `json:"columns"`
	Identity string          `json:"identity,omitempty"`
}

// Ping checks that the store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.db.Ping(ctx)
}

// Tables lists user tables.
func (e *Engine) Tables(ctx context.Context) ([]string, error) {
	var names []string
	err := e.observe(ctx, "tables", "", func(ctx context.Context) error {
		return e.withConn(ctx, func(conn sqldb.Conn) error {
			var err error
			names, err = schema.ListTables(ctx, conn, e.db.Dialect())
			return err
		})
	})
	return names, err
}

// Describe returns the columns and resolved identity of table.
func (e *Engine) Describe(ctx context.Context, table string) (TableInfo, error) {
	var info TableInfo
	err := e.observe(ctx, "describe", table, func(ctx context.Context) error {
		return e.withConn(ctx, func(conn sqldb.Conn) error {
			cols, err := e.describe(ctx, conn, table)
			if err != nil {
				return err
			}
			info = TableInfo{Name: table, Columns: cols}
			if id, err := schema.ResolveIdentity(cols); err == nil {
				info.Identity = id.Name
			}
			return nil
		})
	})
	return info, err
}

// List returns every row of table in store order. An empty table yields an empty, non-nil
// slice.
func (e *Engine) List(ctx context.Context, table string) ([]value.Row, error) {
	var out []value.Row
	err := e.observe(ctx, "list", table, func(ctx context.Context) error {
		return e.withConn(ctx, func(conn sqldb.Conn) error {
			names, err := schema.ListTables(ctx, conn, e.db.Dialect())
			if err != nil {
				return err
			}
			canonical, ok := schema.FindTable(names, table)
			if !ok {
				return notFound("table %q not found", table)
			}

			query, err := buildSelectAll(e.db.Dialect(), canonical)
			if err != nil {
				return err
			}
			rows, err := conn.Query(ctx, query)
			if err != nil {
				return fmt.Errorf("select from %q: %w", canonical, err)
			}
			cols, data, err := sqldb.ScanValues(rows)
			if err != nil {
				return fmt.Errorf("select from %q: %w", canonical, err)
			}

			names = make([]string, len(cols))
			for i, c := range cols {
				names[i] = c.Name
			}
			out = make([]value.Row, 0, len(data))
			for _, raw := range data {
				row := value.Row{Columns: names, Values: make([]value.Value, len(raw))}
				for i, v := range raw {
					row.Values[i] = value.FromDB(v, cols[i].DatabaseType)
				}
				out = append(out, row)
			}
			return nil
		})
	})
	return out, err
}

// withConn checks a connection out of the pool for the duration of fn.
func (e *Engine) withConn(ctx context.Context, fn func(sqldb.Conn) error) error {
	conn, err := e.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()
	return fn(conn)
}

// describe reads the columns of table, treating an unknown table as not found.
func (e *Engine) describe(ctx context.Context, q sqldb.Querier, table string) ([]schema.Column, error) {
	cols, err := schema.DescribeTable(ctx, q, e.db.Dialect(), table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, notFound("table %q not found", table)
	}
	return cols, nil
}

// match resolves the keys of fields against cols. Assignments follow catalog column order and
// carry the catalog spelling. Keys naming no column are returned as unknown.
func match(cols []schema.Column, fields value.Fields) (matched []assignment, unknown []string) {
	for _, c := range cols {
		if v, ok := fields.Lookup(c.Name); ok {
			matched = append(matched, assignment{column: c.Name, value: v})
		}
	}
	for _, k := range fields.Keys() {
		if _, ok := schema.Lookup(cols, k); !ok {
			unknown = append(unknown, k)
		}
	}
	return matched, unknown
}

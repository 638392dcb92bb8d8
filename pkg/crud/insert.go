package crud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edgeflare/dbapi/pkg/schema"
	"github.com/edgeflare/dbapi/pkg/sqldb"
	"github.com/edgeflare/dbapi/pkg/value"
	"go.uber.org/zap"
)

const rollbackTimeout = 5 * time.Second

// InsertResult reports the identity of an inserted row when the table has one.
type InsertResult struct {
	// Identity is the identity column name, empty when none could be resolved.
	Identity string
	// Value is the identity value, supplied by the caller or generated.
	Value value.Value
	// Generated is true when Value was computed as MAX+1.
	Generated bool
}

// Insert adds one row to table. Keys of fields are matched to columns case-insensitively and
// unknown keys are ignored. When the table has an integer identity column the caller left
// out, the next value is computed as MAX+1 inside the same serializable transaction as the
// insert, so concurrent inserts never observe the same maximum. Transactions the store aborts
// for serialization reasons are retried from the start.
func (e *Engine) Insert(ctx context.Context, table string, fields value.Fields) (InsertResult, error) {
	var res InsertResult
	err := e.observe(ctx, "insert", table, func(ctx context.Context) error {
		return e.withConn(ctx, func(conn sqldb.Conn) error {
			return e.retrying(ctx, "insert", table, func() error {
				var err error
				res, err = e.insertTx(ctx, conn, table, fields)
				return err
			})
		})
	})
	return res, err
}

func (e *Engine) insertTx(ctx context.Context, conn sqldb.Conn, table string, fields value.Fields) (res InsertResult, err error) {
	tx, err := conn.BeginSerializable(ctx)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			e.rollback(ctx, tx, table)
		}
	}()

	cols, err := e.describe(ctx, tx, table)
	if err != nil {
		return res, err
	}
	values, _ := match(cols, fields)

	id, idErr := schema.ResolveIdentity(cols)
	if idErr == nil {
		res.Identity = id.Name
		if v, ok := fields.Lookup(id.Name); ok {
			res.Value = v
		} else if schema.Family(id.DataType) == schema.FamilyInteger {
			next, err := e.nextID(ctx, tx, table, id.Name)
			if err != nil {
				return res, err
			}
			res.Value, res.Generated = value.Int(next), true
			values = withAssignment(cols, values, assignment{column: id.Name, value: res.Value})
		}
	}

	if len(values) == 0 {
		return res, invalidInput("nothing to insert into %q", table)
	}

	query, args, err := buildInsert(e.db.Dialect(), table, values)
	if err != nil {
		return res, err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return res, fmt.Errorf("insert into %q: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit insert into %q: %w", table, err)
	}
	return res, nil
}

func (e *Engine) nextID(ctx context.Context, q sqldb.Querier, table, column string) (int64, error) {
	query, err := buildNextID(e.db.Dialect(), table, column)
	if err != nil {
		return 0, err
	}
	rows, err := q.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("next identity of %q: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("next identity of %q: %w", table, err)
		}
		return 0, fmt.Errorf("next identity of %q: no result", table)
	}
	var next int64
	if err := rows.Scan(&next); err != nil {
		return 0, fmt.Errorf("next identity of %q: %w", table, err)
	}
	return next, nil
}

// rollback aborts tx with a context of its own so that a cancelled request still releases
// the transaction's locks.
func (e *Engine) rollback(ctx context.Context, tx sqldb.Tx, table string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Debug("rollback", zap.String("table", table), zap.Error(err))
	}
}

// withAssignment inserts a into as, keeping catalog column order.
func withAssignment(cols []schema.Column, as []assignment, a assignment) []assignment {
	out := make([]assignment, 0, len(as)+1)
	i := 0
	for _, c := range cols {
		switch {
		case c.Name == a.column:
			out = append(out, a)
		case i < len(as) && as[i].column == c.Name:
			out = append(out, as[i])
			i++
		}
	}
	return out
}

package crud

import (
	"context"
	"fmt"

	"github.com/edgeflare/dbapi/pkg/sqldb"
	"github.com/edgeflare/dbapi/pkg/value"
)

// DeleteByID removes the row whose identity equals rowID, or returns ErrNotFound.
func (e *Engine) DeleteByID(ctx context.Context, table, rowID string) error {
	return e.observe(ctx, "delete_by_id", table, func(ctx context.Context) error {
		return e.withConn(ctx, func(conn sqldb.Conn) error {
			_, id, err := e.identify(ctx, conn, table)
			if err != nil {
				return err
			}

			where := []assignment{{column: id.Name, value: ParseRowID(rowID, id.DataType)}}
			query, args, err := buildDelete(e.db.Dialect(), table, where)
			if err != nil {
				return err
			}
			n, err := conn.Exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("delete from %q: %w", table, err)
			}
			if n == 0 {
				return notFound("row %q not found in table %q", rowID, table)
			}
			return nil
		})
	})
}

// DeleteByFields removes every row whose columns equal those in filter and returns how many
// went. Keys naming no column are dropped; an empty filter is rejected rather than deleting
// the whole table.
func (e *Engine) DeleteByFields(ctx context.Context, table string, filter value.Fields) (int64, error) {
	var affected int64
	err := e.observe(ctx, "delete_by_fields", table, func(ctx context.Context) error {
		if len(filter) == 0 {
			return invalidInput("no fields to match in %q", table)
		}
		return e.withConn(ctx, func(conn sqldb.Conn) error {
			cols, err := e.describe(ctx, conn, table)
			if err != nil {
				return err
			}

			where, _ := match(cols, filter)
			if len(where) == 0 {
				return invalidInput("no matching columns in %q", table)
			}

			query, args, err := buildDelete(e.db.Dialect(), table, where)
			if err != nil {
				return err
			}
			affected, err = conn.Exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("delete from %q: %w", table, err)
			}
			return nil
		})
	})
	return affected, err
}

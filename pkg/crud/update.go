package crud

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgeflare/dbapi/pkg/schema"
	"github.com/edgeflare/dbapi/pkg/sqldb"
	"github.com/edgeflare/dbapi/pkg/value"
)

// UpdateByID sets the columns named in fields on the row whose identity equals rowID. The
// identity column itself is never updated. A request that leaves nothing to set is rejected,
// and so is any key naming no column, with ErrInvalidInput. This is stricter than Insert,
// UpdateByFields and DeleteByFields, which drop unknown keys. A row that does not exist
// yields ErrNotFound.
func (e *Engine) UpdateByID(ctx context.Context, table, rowID string, fields value.Fields) error {
	return e.observe(ctx, "update_by_id", table, func(ctx context.Context) error {
		return e.withConn(ctx, func(conn sqldb.Conn) error {
			cols, id, err := e.identify(ctx, conn, table)
			if err != nil {
				return err
			}

			matched, unknown := match(cols, fields)
			if len(unknown) > 0 {
				return invalidInput("unknown column(s) %s in table %q", strings.Join(unknown, ", "), table)
			}
			set := make([]assignment, 0, len(matched))
			for _, a := range matched {
				if !strings.EqualFold(a.column, id.Name) {
					set = append(set, a)
				}
			}
			if len(set) == 0 {
				return invalidInput("nothing to update in %q", table)
			}

			where := []assignment{{column: id.Name, value: ParseRowID(rowID, id.DataType)}}
			query, args, err := buildUpdate(e.db.Dialect(), table, set, where)
			if err != nil {
				return err
			}
			n, err := conn.Exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("update %q: %w", table, err)
			}
			if n == 0 {
				return notFound("row %q not found in table %q", rowID, table)
			}
			return nil
		})
	})
}

// UpdateByFields sets the columns in updated on every row whose columns equal those in
// original. Keys naming no column are dropped from both maps; if either ends up empty the
// request is rejected. It returns the number of rows changed, which may be zero.
//
// A null in original is bound like any other value, so it never matches a NULL column.
func (e *Engine) UpdateByFields(ctx context.Context, table string, original, updated value.Fields) (int64, error) {
	var affected int64
	err := e.observe(ctx, "update_by_fields", table, func(ctx context.Context) error {
		return e.withConn(ctx, func(conn sqldb.Conn) error {
			cols, err := e.describe(ctx, conn, table)
			if err != nil {
				return err
			}

			set, _ := match(cols, updated)
			where, _ := match(cols, original)
			if len(set) == 0 || len(where) == 0 {
				return invalidInput("not enough data to update %q: original and updated must each name a column", table)
			}

			query, args, err := buildUpdate(e.db.Dialect(), table, set, where)
			if err != nil {
				return err
			}
			affected, err = conn.Exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("update %q: %w", table, err)
			}
			return nil
		})
	})
	return affected, err
}

// identify describes table and resolves its identity column.
func (e *Engine) identify(ctx context.Context, q sqldb.Querier, table string) ([]schema.Column, schema.Identity, error) {
	cols, err := e.describe(ctx, q, table)
	if err != nil {
		return nil, schema.Identity{}, err
	}
	id, err := schema.ResolveIdentity(cols)
	if err != nil {
		return nil, schema.Identity{}, unresolvableIdentity(table, err)
	}
	return cols, id, nil
}

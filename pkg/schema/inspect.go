// Package schema reads table metadata from the live database catalog and resolves the column
// that identifies a row. Nothing is cached: every call reflects the catalog at that moment.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgeflare/dbapi/pkg/sqldb"
)

// Column describes one column of a table as reported by the catalog.
type Column struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

// ListTables returns the names of all user tables visible to q, excluding the store's
// internal catalog tables.
func ListTables(ctx context.Context, q sqldb.Querier, d sqldb.Dialect) ([]string, error) {
	rows, err := q.Query(ctx, d.TablesQuery())
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

// DescribeTable returns the columns of table in their native order. The table name is bound
// as a parameter, never spliced into the catalog query. An unknown table yields no columns
// and no error.
func DescribeTable(ctx context.Context, q sqldb.Querier, d sqldb.Dialect, table string) ([]Column, error) {
	rows, err := q.Query(ctx, d.ColumnsQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("describe table %q: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			c  Column
			pk int64
		)
		if err := rows.Scan(&c.Name, &c.DataType, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %q: %w", table, err)
		}
		c.IsPrimaryKey = pk != 0
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe table %q: %w", table, err)
	}
	return cols, nil
}

// FindTable matches table against names case-insensitively and returns the catalog spelling.
func FindTable(names []string, table string) (string, bool) {
	for _, n := range names {
		if n == table {
			return n, true
		}
	}
	for _, n := range names {
		if strings.EqualFold(n, table) {
			return n, true
		}
	}
	return "", false
}

// Lookup finds the column called name, ignoring case.
func Lookup(cols []Column, name string) (Column, bool) {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

package crud

import (
	"fmt"
	"strings"

	"github.com/edgeflare/dbapi/pkg/sqldb"
	"github.com/edgeflare/dbapi/pkg/value"
)

// assignment pairs a catalog column name with the value bound to it.
type assignment struct {
	column string
	value  value.Value
}

// queryBuilder assembles a statement. Identifiers are always quoted by the dialect and values
// are always bound; nothing from the caller is spliced into the SQL text verbatim.
type queryBuilder struct {
	dialect sqldb.Dialect
	args    []any
}

func newQueryBuilder(d sqldb.Dialect) *queryBuilder {
	return &queryBuilder{dialect: d}
}

func (qb *queryBuilder) bind(v value.Value) string {
	qb.args = append(qb.args, v.Arg())
	return qb.dialect.Placeholder(len(qb.args))
}

func (qb *queryBuilder) ident(name string) (string, error) {
	q, err := qb.dialect.QuoteIdent(name)
	if err != nil {
		return "", fmt.Errorf("quote %q: %w", name, err)
	}
	return q, nil
}

// equalities renders "a = ?" for each assignment.
func (qb *queryBuilder) equalities(as []assignment) ([]string, error) {
	parts := make([]string, 0, len(as))
	for _, a := range as {
		col, err := qb.ident(a.column)
		if err != nil {
			return nil, err
		}
		parts = append(parts, col+" = "+qb.bind(a.value))
	}
	return parts, nil
}

func buildSelectAll(d sqldb.Dialect, table string) (string, error) {
	t, err := d.QuoteIdent(table)
	if err != nil {
		return "", fmt.Errorf("quote %q: %w", table, err)
	}
	return "SELECT * FROM " + t, nil
}

func buildNextID(d sqldb.Dialect, table, column string) (string, error) {
	qb := newQueryBuilder(d)
	t, err := qb.ident(table)
	if err != nil {
		return "", err
	}
	c, err := qb.ident(column)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 FROM %s", c, t), nil
}

func buildInsert(d sqldb.Dialect, table string, values []assignment) (string, []any, error) {
	qb := newQueryBuilder(d)
	t, err := qb.ident(table)
	if err != nil {
		return "", nil, err
	}

	columns := make([]string, 0, len(values))
	placeholders := make([]string, 0, len(values))
	for _, a := range values {
		c, err := qb.ident(a.column)
		if err != nil {
			return "", nil, err
		}
		columns = append(columns, c)
		placeholders = append(placeholders, qb.bind(a.value))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		t,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	return query, qb.args, nil
}

func buildUpdate(d sqldb.Dialect, table string, set, where []assignment) (string, []any, error) {
	if len(set) == 0 || len(where) == 0 {
		return "", nil, fmt.Errorf("update needs both SET and WHERE terms")
	}
	qb := newQueryBuilder(d)
	t, err := qb.ident(table)
	if err != nil {
		return "", nil, err
	}
	setClauses, err := qb.equalities(set)
	if err != nil {
		return "", nil, err
	}
	whereClauses, err := qb.equalities(where)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s",
		t,
		strings.Join(setClauses, ", "),
		strings.Join(whereClauses, " AND "),
	)
	return query, qb.args, nil
}

func buildDelete(d sqldb.Dialect, table string, where []assignment) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, fmt.Errorf("delete needs WHERE terms")
	}
	qb := newQueryBuilder(d)
	t, err := qb.ident(table)
	if err != nil {
		return "", nil, err
	}
	whereClauses, err := qb.equalities(where)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", t, strings.Join(whereClauses, " AND ")), qb.args, nil
}

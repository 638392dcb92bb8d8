package sqldb

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	mssql "github.com/microsoft/go-mssqldb"
)

// Dialect captures the SQL differences between stores.
type Dialect interface {
	Name() string
	// QuoteIdent renders name as a delimited identifier. Embedded delimiters are doubled.
	QuoteIdent(name string) (string, error)
	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string
	// TablesQuery lists user table names. It takes no parameters.
	TablesQuery() string
	// ColumnsQuery describes one table, bound as the only parameter. Each row is
	// (name, data type, 1 when part of the primary key else 0) in column order.
	ColumnsQuery() string
	// Retryable reports whether err aborted a transaction that may succeed when rerun.
	Retryable(err error) bool
}

var ErrInvalidIdentifier = errors.New("invalid identifier")

var (
	SQLite    Dialect = sqliteDialect{}
	Postgres  Dialect = postgresDialect{}
	MySQL     Dialect = mysqlDialect{}
	SQLServer Dialect = sqlserverDialect{}
)

func checkIdent(name string) error {
	if name == "" || strings.ContainsRune(name, 0) {
		return ErrInvalidIdentifier
	}
	return nil
}

func quoteWith(name, left, right string) (string, error) {
	if err := checkIdent(name); err != nil {
		return "", err
	}
	return left + strings.ReplaceAll(name, right, right+right) + right, nil
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite3" }

func (sqliteDialect) QuoteIdent(name string) (string, error) { return quoteWith(name, `"`, `"`) }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) TablesQuery() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
}

func (sqliteDialect) ColumnsQuery() string {
	return `SELECT name, type, CASE WHEN pk > 0 THEN 1 ELSE 0 END FROM pragma_table_info(?) ORDER BY cid`
}

func (sqliteDialect) Retryable(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) QuoteIdent(name string) (string, error) {
	if err := checkIdent(name); err != nil {
		return "", err
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) TablesQuery() string {
	return `SELECT table_name::text FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`
}

func (postgresDialect) ColumnsQuery() string {
	return `SELECT c.column_name::text, c.data_type::text,
  CASE WHEN EXISTS (
    SELECT 1 FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
      ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
      AND tc.table_schema = c.table_schema
      AND tc.table_name = c.table_name
      AND kcu.column_name = c.column_name
  ) THEN 1 ELSE 0 END
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position`
}

func (postgresDialect) Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) QuoteIdent(name string) (string, error) { return quoteWith(name, "`", "`") }

func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) TablesQuery() string {
	return `SELECT table_name FROM information_schema.tables
WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
ORDER BY table_name`
}

func (mysqlDialect) ColumnsQuery() string {
	return `SELECT column_name, column_type, CASE WHEN column_key = 'PRI' THEN 1 ELSE 0 END
FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ordinal_position`
}

func (mysqlDialect) Retryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		// ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT
		return me.Number == 1213 || me.Number == 1205
	}
	return false
}

type sqlserverDialect struct{}

func (sqlserverDialect) Name() string { return "sqlserver" }

func (sqlserverDialect) QuoteIdent(name string) (string, error) { return quoteWith(name, "[", "]") }

func (sqlserverDialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

func (sqlserverDialect) TablesQuery() string {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`
}

func (sqlserverDialect) ColumnsQuery() string {
	return `SELECT c.COLUMN_NAME, c.DATA_TYPE,
  CASE WHEN EXISTS (
    SELECT 1 FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
    JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
      ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
    WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
      AND tc.TABLE_SCHEMA = c.TABLE_SCHEMA
      AND tc.TABLE_NAME = c.TABLE_NAME
      AND kcu.COLUMN_NAME = c.COLUMN_NAME
  ) THEN 1 ELSE 0 END
FROM INFORMATION_SCHEMA.COLUMNS c
WHERE c.TABLE_SCHEMA = SCHEMA_NAME() AND c.TABLE_NAME = @p1
ORDER BY c.ORDINAL_POSITION`
}

func (sqlserverDialect) Retryable(err error) bool {
	var me mssql.Error
	if errors.As(err, &me) {
		// chosen as deadlock victim
		return me.Number == 1205
	}
	return false
}

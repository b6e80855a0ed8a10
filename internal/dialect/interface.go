package dialect

import (
	"context"
	"database/sql"
)

// Querier is the subset of *sql.Conn / *sql.DB the dialects read the catalog through.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Execer runs a statement. Both *sql.Tx and *sql.Conn satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Dialect abstracts database-specific operations.
type Dialect interface {
	// Connection
	Name() string // driver name registered with database/sql
	DefaultPort() int
	FormatDSN(host string, port int, user, password, database string) string
	ServerDatabase() string // database used when no database is selected ("" = none)

	// Catalog Probes
	// Every probe returns rows whose first column is the matched name.
	DatabaseExistsQuery(name string) (string, []any)
	ListTablesQuery() string
	TableExistsQuery(table string) (string, []any)
	// ColumnsQuery rows: name, type, nullable (YES/NO), key, default, extra.
	ColumnsQuery(table string) (string, []any)
	// ForeignKeysQuery rows: table, referenced table.
	ForeignKeysQuery() string
	RowCountQuery(table string) string

	// DDL
	CreateDatabaseQuery(name string) string
	CreateTableDDL(ctx context.Context, q Querier, table string) (string, error)
	IsAlreadyExists(err error) bool

	// Execution Hooks (Table Level) - FK checks, IDENTITY_INSERT etc.
	// BeforeTable may change session state that outlives the transaction;
	// AfterTable must undo it and is also run on the bare connection after a
	// rollback.
	BeforeTable(ctx context.Context, ex Execer, table string, hasIdentity bool) error
	AfterTable(ctx context.Context, ex Execer, table string, hasIdentity bool) error

	// Query Generation
	QuoteIdentifier(name string) string
	SelectQuery(table string, cols []string) string
	InsertQuery(table string, cols []string) string
	Placeholder(index int) string // Returns ?, $1, @p1, etc.
}

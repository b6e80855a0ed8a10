package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes.
const (
	pgDuplicateDatabase = "42P04"
	pgDuplicateTable    = "42P07"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) DefaultPort() int { return 5432 }

func (d *PostgresDialect) FormatDSN(host string, port int, user, password, database string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// ServerDatabase is the maintenance database every cluster carries.
func (d *PostgresDialect) ServerDatabase() string { return "postgres" }

func (d *PostgresDialect) DatabaseExistsQuery(name string) (string, []any) {
	return `SELECT datname FROM pg_database WHERE datname = $1`, []any{name}
}

func (d *PostgresDialect) ListTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'`
}

func (d *PostgresDialect) TableExistsQuery(table string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' AND table_name = $1`, []any{table}
}

func (d *PostgresDialect) ColumnsQuery(table string) (string, []any) {
	return `SELECT
    a.attname,
    format_type(a.atttypid, a.atttypmod),
    CASE WHEN a.attnotnull THEN 'NO' ELSE 'YES' END,
    CASE WHEN EXISTS (SELECT 1 FROM pg_constraint con WHERE con.conrelid = c.oid AND con.contype = 'p' AND a.attnum = ANY (con.conkey)) THEN 'PRI' ELSE '' END,
    pg_get_expr(ad.adbin, ad.adrelid),
    CASE WHEN a.attidentity <> '' OR pg_get_expr(ad.adbin, ad.adrelid) LIKE 'nextval(%' THEN 'auto_increment' ELSE '' END
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
WHERE n.nspname = current_schema() AND c.relname = $1 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`, []any{table}
}

func (d *PostgresDialect) ForeignKeysQuery() string {
	return `SELECT c.relname, r.relname FROM pg_constraint con JOIN pg_class c ON c.oid = con.conrelid JOIN pg_class r ON r.oid = con.confrelid JOIN pg_namespace n ON n.oid = c.relnamespace WHERE con.contype = 'f' AND n.nspname = current_schema()`
}

func (d *PostgresDialect) RowCountQuery(table string) string {
	return defaultRowCountQuery(d, table)
}

// CreateDatabaseQuery has no IF NOT EXISTS form; callers treat 42P04 as success.
func (d *PostgresDialect) CreateDatabaseQuery(name string) string {
	return "CREATE DATABASE " + d.QuoteIdentifier(name)
}

// CreateTableDDL synthesizes a CREATE TABLE statement from pg_catalog, since
// PostgreSQL has no server-side equivalent of SHOW CREATE TABLE.
// Sequence-backed defaults become serial types so the statement does not
// reference sequences missing on the destination. Primary key, unique, check
// and foreign key constraints are carried over; a foreign key needs its
// referenced table on the destination first. Non-unique indexes, triggers and
// column comments are not copied.
func (d *PostgresDialect) CreateTableDDL(ctx context.Context, q Querier, table string) (string, error) {
	query, args := d.ColumnsQuery(table)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []catalogColumn
	for rows.Next() {
		var name, typ, nullable, key, extra string
		var def sql.NullString
		if err := rows.Scan(&name, &typ, &nullable, &key, &def, &extra); err != nil {
			return "", fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, catalogColumn{
			Name:     name,
			Type:     typ,
			NotNull:  nullable == "NO",
			Default:  def.String,
			Identity: extra != "",
		})
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating columns of %s: %w", table, err)
	}

	constraints, err := collectStrings(ctx, q, `SELECT pg_get_constraintdef(con.oid) FROM pg_constraint con JOIN pg_class c ON c.oid = con.conrelid JOIN pg_namespace n ON n.oid = c.relnamespace WHERE n.nspname = current_schema() AND c.relname = $1 AND con.contype IN ('p', 'u', 'c', 'f') ORDER BY con.contype, con.conname`, table)
	if err != nil {
		return "", fmt.Errorf("failed to read constraints of %s: %w", table, err)
	}

	return assembleCreateTable(d, table, cols, constraints, d.renderColumn)
}

func (d *PostgresDialect) renderColumn(c catalogColumn) string {
	typ := c.Type
	def := c.Default
	if c.Identity {
		switch typ {
		case "smallint":
			typ = "smallserial"
		case "bigint":
			typ = "bigserial"
		default:
			typ = "serial"
		}
		def = ""
	}
	s := d.QuoteIdentifier(c.Name) + " " + typ
	if c.NotNull {
		s += " NOT NULL"
	}
	if def != "" {
		s += " DEFAULT " + def
	}
	return s
}

func (d *PostgresDialect) IsAlreadyExists(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgDuplicateDatabase || pqErr.Code == pgDuplicateTable
	}
	return false
}

// BeforeTable defers deferrable constraints to commit time.
func (d *PostgresDialect) BeforeTable(ctx context.Context, ex Execer, table string, hasIdentity bool) error {
	_, err := ex.ExecContext(ctx, "SET CONSTRAINTS ALL DEFERRED")
	return err
}

// AfterTable is a no-op: deferred constraints are checked at commit.
func (d *PostgresDialect) AfterTable(ctx context.Context, ex Execer, table string, hasIdentity bool) error {
	return nil
}

func (d *PostgresDialect) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *PostgresDialect) SelectQuery(table string, cols []string) string {
	return defaultSelectQuery(d, table, cols)
}

func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	return defaultInsertQuery(d, table, cols)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

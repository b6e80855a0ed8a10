package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb" // SQL Server Driver
)

// SQL Server error numbers.
const (
	mssqlErrDatabaseExists = 1801
	mssqlErrObjectExists   = 2714
)

type MSSQLDialect struct{}

// Helper: MSSQL Driver (go-mssqldb) prefers @p1, @p2 parameters over ?

func (d *MSSQLDialect) Name() string { return "sqlserver" }

func (d *MSSQLDialect) DefaultPort() int { return 1433 }

func (d *MSSQLDialect) FormatDSN(host string, port int, user, password, database string) string {
	u := url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(user, password),
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
	}
	if database != "" {
		u.RawQuery = url.Values{"database": {database}}.Encode()
	}
	return u.String()
}

func (d *MSSQLDialect) ServerDatabase() string { return "master" }

func (d *MSSQLDialect) DatabaseExistsQuery(name string) (string, []any) {
	return `SELECT name FROM sys.databases WHERE name = @p1`, []any{name}
}

func (d *MSSQLDialect) ListTablesQuery() string {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_TYPE = 'BASE TABLE'`
}

func (d *MSSQLDialect) TableExistsQuery(table string) (string, []any) {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_TYPE = 'BASE TABLE' AND TABLE_NAME = @p1`, []any{table}
}

func (d *MSSQLDialect) ColumnsQuery(table string) (string, []any) {
	return `
		SELECT
			c.COLUMN_NAME,
			CASE
				WHEN c.CHARACTER_MAXIMUM_LENGTH = -1 THEN c.DATA_TYPE + '(max)'
				WHEN c.CHARACTER_MAXIMUM_LENGTH IS NOT NULL AND c.DATA_TYPE NOT IN ('text', 'ntext', 'image', 'xml')
					THEN c.DATA_TYPE + '(' + CAST(c.CHARACTER_MAXIMUM_LENGTH AS VARCHAR(10)) + ')'
				WHEN c.DATA_TYPE IN ('decimal', 'numeric')
					THEN c.DATA_TYPE + '(' + CAST(c.NUMERIC_PRECISION AS VARCHAR(10)) + ',' + CAST(c.NUMERIC_SCALE AS VARCHAR(10)) + ')'
				ELSE c.DATA_TYPE
			END AS COLUMN_TYPE,
			c.IS_NULLABLE,
			CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 'PRI' ELSE '' END AS COLUMN_KEY,
			c.COLUMN_DEFAULT,
			CASE
				WHEN COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity') = 1 THEN 'identity'
				ELSE ''
			END AS EXTRA
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.TABLE_SCHEMA, kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		) pk ON pk.TABLE_SCHEMA = c.TABLE_SCHEMA AND pk.TABLE_NAME = c.TABLE_NAME AND pk.COLUMN_NAME = c.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = SCHEMA_NAME() AND c.TABLE_NAME = @p1
		ORDER BY c.ORDINAL_POSITION
	`, []any{table}
}

func (d *MSSQLDialect) ForeignKeysQuery() string {
	return `SELECT OBJECT_NAME(fk.parent_object_id), OBJECT_NAME(fk.referenced_object_id) FROM sys.foreign_keys fk WHERE fk.schema_id = SCHEMA_ID()`
}

func (d *MSSQLDialect) RowCountQuery(table string) string {
	return defaultRowCountQuery(d, table)
}

func (d *MSSQLDialect) CreateDatabaseQuery(name string) string {
	return "CREATE DATABASE " + d.QuoteIdentifier(name)
}

// CreateTableDDL synthesizes CREATE TABLE from INFORMATION_SCHEMA. Only columns,
// defaults, identity and the primary key are carried over: foreign keys,
// unique and check constraints and indexes are not, so the copy accepts rows
// the source would have rejected.
func (d *MSSQLDialect) CreateTableDDL(ctx context.Context, q Querier, table string) (string, error) {
	query, args := d.ColumnsQuery(table)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []catalogColumn
	var pk []string
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
			Identity: extra == "identity",
		})
		if key == "PRI" {
			pk = append(pk, d.QuoteIdentifier(name))
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating columns of %s: %w", table, err)
	}

	var constraints []string
	if len(pk) > 0 {
		constraints = append(constraints, "PRIMARY KEY ("+strings.Join(pk, ", ")+")")
	}
	return assembleCreateTable(d, table, cols, constraints, d.renderColumn)
}

func (d *MSSQLDialect) renderColumn(c catalogColumn) string {
	s := d.QuoteIdentifier(c.Name) + " " + c.Type
	if c.Identity {
		s += " IDENTITY(1,1)"
	}
	if c.NotNull {
		s += " NOT NULL"
	} else {
		s += " NULL"
	}
	if c.Default != "" {
		s += " DEFAULT " + c.Default
	}
	return s
}

func (d *MSSQLDialect) IsAlreadyExists(err error) bool {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == mssqlErrDatabaseExists || msErr.Number == mssqlErrObjectExists
	}
	return false
}

// BeforeTable allows explicit values for a selected identity column.
func (d *MSSQLDialect) BeforeTable(ctx context.Context, ex Execer, table string, hasIdentity bool) error {
	if !hasIdentity {
		return nil
	}
	_, err := ex.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s ON", d.QuoteIdentifier(table)))
	return err
}

func (d *MSSQLDialect) AfterTable(ctx context.Context, ex Execer, table string, hasIdentity bool) error {
	if !hasIdentity {
		return nil
	}
	_, err := ex.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s OFF", d.QuoteIdentifier(table)))
	return err
}

func (d *MSSQLDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *MSSQLDialect) SelectQuery(table string, cols []string) string {
	return defaultSelectQuery(d, table, cols)
}

func (d *MSSQLDialect) InsertQuery(table string, cols []string) string {
	return defaultInsertQuery(d, table, cols)
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

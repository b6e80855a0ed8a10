package dialect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers.
const (
	mysqlErrDBCreateExists = 1007
	mysqlErrTableExists    = 1050
)

type MysqlDialect struct{}

func (d *MysqlDialect) Name() string { return "mysql" }

func (d *MysqlDialect) DefaultPort() int { return 3306 }

func (d *MysqlDialect) FormatDSN(host string, port int, user, password, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = database
	return cfg.FormatDSN()
}

func (d *MysqlDialect) ServerDatabase() string { return "" }

func (d *MysqlDialect) DatabaseExistsQuery(name string) (string, []any) {
	return "SHOW DATABASES LIKE " + mysqlLikeLiteral(name), nil
}

func (d *MysqlDialect) ListTablesQuery() string {
	return "SHOW TABLES"
}

func (d *MysqlDialect) TableExistsQuery(table string) (string, []any) {
	return "SHOW TABLES LIKE " + mysqlLikeLiteral(table), nil
}

func (d *MysqlDialect) ColumnsQuery(table string) (string, []any) {
	// Field, Type, Null, Key, Default, Extra
	return "SHOW COLUMNS FROM " + d.QuoteIdentifier(table), nil
}

func (d *MysqlDialect) ForeignKeysQuery() string {
	return `SELECT TABLE_NAME, REFERENCED_TABLE_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL`
}

func (d *MysqlDialect) RowCountQuery(table string) string {
	return defaultRowCountQuery(d, table)
}

func (d *MysqlDialect) CreateDatabaseQuery(name string) string {
	return "CREATE DATABASE IF NOT EXISTS " + d.QuoteIdentifier(name)
}

// CreateTableDDL returns the server's own CREATE TABLE statement.
func (d *MysqlDialect) CreateTableDDL(ctx context.Context, q Querier, table string) (string, error) {
	var name, ddl string
	err := q.QueryRowContext(ctx, "SHOW CREATE TABLE "+d.QuoteIdentifier(table)).Scan(&name, &ddl)
	if err != nil {
		return "", fmt.Errorf("failed to read create statement for %s: %w", table, err)
	}
	return ddl, nil
}

func (d *MysqlDialect) IsAlreadyExists(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDBCreateExists || myErr.Number == mysqlErrTableExists
	}
	return false
}

// BeforeTable disables FK checks so tables can be filled in selection order.
func (d *MysqlDialect) BeforeTable(ctx context.Context, ex Execer, table string, hasIdentity bool) error {
	_, err := ex.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0")
	return err
}

func (d *MysqlDialect) AfterTable(ctx context.Context, ex Execer, table string, hasIdentity bool) error {
	_, err := ex.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1")
	return err
}

func (d *MysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MysqlDialect) SelectQuery(table string, cols []string) string {
	return defaultSelectQuery(d, table, cols)
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	return defaultInsertQuery(d, table, cols)
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

// mysqlLikeLiteral renders name as a quoted SHOW ... LIKE pattern that matches
// at least name. SHOW's LIKE clause takes no ESCAPE, and a backslash escape
// depends on NO_BACKSLASH_ESCAPES, so backslashes become the single-character
// wildcard and the pattern never contains one. Callers compare the returned
// names exactly, which removes the extra matches wildcards allow.
func mysqlLikeLiteral(name string) string {
	return "'" + strings.NewReplacer(`\`, `_`, `'`, `''`).Replace(name) + "'"
}

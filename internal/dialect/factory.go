package dialect

import (
	"fmt"
	"strings"
)

const DefaultDriver = "mysql"

// Get returns the Dialect implementation for a driver name.
func Get(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "mysql", "mariadb":
		return &MysqlDialect{}, nil
	case "postgres", "postgresql", "pg":
		return &PostgresDialect{}, nil
	case "sqlserver", "mssql":
		return &MSSQLDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q (supported: mysql, postgres, sqlserver)", driver)
	}
}

// Ensure interface implementation
var _ Dialect = (*MysqlDialect)(nil)
var _ Dialect = (*PostgresDialect)(nil)
var _ Dialect = (*MSSQLDialect)(nil)

package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-shuttle/internal/database"
)

// DatabaseExists reports whether desc.Database exists on desc's server.
// A missing database is (false, nil); an unreachable server is an error
// wrapping database.ErrConnection.
func DatabaseExists(ctx context.Context, desc database.Descriptor) (bool, error) {
	s, err := database.OpenServer(ctx, desc)
	if err != nil {
		return false, err
	}
	defer s.Close()

	return HasDatabase(ctx, s, desc.Database)
}

// HasDatabase probes the catalog of an open server session for an exact name.
func HasDatabase(ctx context.Context, s *database.Session, name string) (bool, error) {
	query, args := s.Dialect.DatabaseExistsQuery(name)
	names, err := queryNames(ctx, s, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to look up database %s: %w", name, err)
	}
	return containsExact(names, name), nil
}

// ListTables returns the base tables of the session's database in engine order.
func ListTables(ctx context.Context, s *database.Session) ([]string, error) {
	tables, err := queryNames(ctx, s, s.Dialect.ListTablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	return tables, nil
}

// TableExists probes for a single table by exact name.
func TableExists(ctx context.Context, s *database.Session, table string) (bool, error) {
	query, args := s.Dialect.TableExistsQuery(table)
	names, err := queryNames(ctx, s, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return containsExact(names, table), nil
}

// ListColumns returns the column names of table in declared order.
func ListColumns(ctx context.Context, s *database.Session, table string) ([]string, error) {
	cols, err := Columns(ctx, s, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// Columns returns the columns of table with their metadata, in declared order.
func Columns(ctx context.Context, s *database.Session, table string) ([]*Column, error) {
	query, args := s.Dialect.ColumnsQuery(table)
	rows, err := s.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []*Column
	for rows.Next() {
		var name, typ, nullable, key, def, extra sql.NullString
		if err := rows.Scan(&name, &typ, &nullable, &key, &def, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", table, err)
		}
		cols = append(cols, &Column{
			Name:          name.String,
			Type:          typ.String,
			Nullable:      nullable.String == "YES",
			PrimaryKey:    key.String == "PRI",
			AutoIncrement: isAutoIncrement(extra.String),
			Default:       def.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return cols, nil
}

// Dependencies returns, for each of tables, the other tables among them it
// references through foreign keys.
func Dependencies(ctx context.Context, s *database.Session, tables []string) (map[string][]string, error) {
	wanted := make(map[string]bool, len(tables))
	for _, t := range tables {
		wanted[t] = true
	}

	rows, err := s.Conn().QueryContext(ctx, s.Dialect.ForeignKeysQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer rows.Close()

	deps := make(map[string][]string)
	seen := make(map[[2]string]bool)
	for rows.Next() {
		var table, ref sql.NullString
		if err := rows.Scan(&table, &ref); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		// Self references and references outside the set do not constrain order.
		if table.String == ref.String || !wanted[table.String] || !wanted[ref.String] {
			continue
		}
		edge := [2]string{table.String, ref.String}
		if seen[edge] {
			continue
		}
		seen[edge] = true
		deps[table.String] = append(deps[table.String], ref.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign keys: %w", err)
	}
	return deps, nil
}

// RowCount counts the rows of table.
func RowCount(ctx context.Context, s *database.Session, table string) (int64, error) {
	var n int64
	if err := s.Conn().QueryRowContext(ctx, s.Dialect.RowCountQuery(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return n, nil
}

func queryNames(ctx context.Context, s *database.Session, query string, args ...any) ([]string, error) {
	rows, err := s.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func containsExact(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func isAutoIncrement(extra string) bool {
	e := strings.ToLower(extra)
	return strings.Contains(e, "auto_increment") ||
		strings.Contains(e, "identity") ||
		strings.Contains(e, "nextval")
}

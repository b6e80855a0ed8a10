package dialect

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxIdentifierLen is the longest identifier any supported engine accepts.
const maxIdentifierLen = 128

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed and a function that returns the placeholder for a given index.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// ValidateIdentifier rejects names that cannot be a table, column or database name.
// Names are always quoted before use, so only emptiness, length and control
// characters are checked here.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier is required")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("identifier %q is not valid UTF-8", name)
	}
	if utf8.RuneCountInString(name) > maxIdentifierLen {
		return fmt.Errorf("identifier %q must be at most %d characters", name, maxIdentifierLen)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("identifier %q contains control characters", name)
		}
	}
	return nil
}

// QuoteList quotes every name and joins them with ", ".
func QuoteList(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

func defaultSelectQuery(d Dialect, table string, cols []string) string {
	return fmt.Sprintf("SELECT %s FROM %s", QuoteList(d, cols), d.QuoteIdentifier(table))
}

func defaultInsertQuery(d Dialect, table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdentifier(table), QuoteList(d, cols), vals)
}

func defaultRowCountQuery(d Dialect, table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdentifier(table))
}

// catalogColumn is one row of a synthesized-DDL catalog query.
type catalogColumn struct {
	Name     string
	Type     string
	NotNull  bool
	Default  string
	Identity bool
}

// assembleCreateTable renders a CREATE TABLE statement from catalog rows and
// table-level constraint clauses (PRIMARY KEY (...), UNIQUE (...)).
func assembleCreateTable(d Dialect, table string, cols []catalogColumn, constraints []string, render func(catalogColumn) string) (string, error) {
	if len(cols) == 0 {
		return "", fmt.Errorf("table %s not found or has no columns", table)
	}
	lines := make([]string, 0, len(cols)+len(constraints))
	for _, c := range cols {
		lines = append(lines, "  "+render(c))
	}
	for _, c := range constraints {
		lines = append(lines, "  "+c)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", d.QuoteIdentifier(table), strings.Join(lines, ",\n")), nil
}

// collectStrings drains single-column string rows.
func collectStrings(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

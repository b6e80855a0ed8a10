package schema

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"db-shuttle/internal/dialect"
)

// ErrInvalidPlan is wrapped by every Plan.Validate failure.
var ErrInvalidPlan = errors.New("invalid transfer plan")

// Validate checks the plan invariants: at least one table, every selected
// table has a non-empty, duplicate-free column list, no columns for tables
// outside the selection, and both endpoints use the same engine.
func (p *Plan) Validate() error {
	if len(p.Tables) == 0 {
		return fmt.Errorf("%w: no tables selected", ErrInvalidPlan)
	}

	src := p.Source.WithDefaults()
	dst := p.Destination.WithDefaults()
	srcDialect, err := src.Dialect()
	if err != nil {
		return fmt.Errorf("%w: source: %w", ErrInvalidPlan, err)
	}
	dstDialect, err := dst.Dialect()
	if err != nil {
		return fmt.Errorf("%w: destination: %w", ErrInvalidPlan, err)
	}
	if srcDialect.Name() != dstDialect.Name() {
		return fmt.Errorf("%w: source engine %s and destination engine %s differ", ErrInvalidPlan, srcDialect.Name(), dstDialect.Name())
	}

	selected := make(map[string]bool, len(p.Tables))
	for _, t := range p.Tables {
		if err := dialect.ValidateIdentifier(t); err != nil {
			return fmt.Errorf("%w: table: %w", ErrInvalidPlan, err)
		}
		if selected[t] {
			return fmt.Errorf("%w: table %s selected twice", ErrInvalidPlan, t)
		}
		selected[t] = true

		cols := p.Columns[t]
		if len(cols) == 0 {
			return fmt.Errorf("%w: no columns selected for table %s", ErrInvalidPlan, t)
		}
		seen := make(map[string]bool, len(cols))
		for _, c := range cols {
			if err := dialect.ValidateIdentifier(c); err != nil {
				return fmt.Errorf("%w: column of %s: %w", ErrInvalidPlan, t, err)
			}
			if seen[c] {
				return fmt.Errorf("%w: column %s.%s selected twice", ErrInvalidPlan, t, c)
			}
			seen[c] = true
		}
	}

	for t := range p.Columns {
		if !selected[t] {
			return fmt.Errorf("%w: columns given for unselected table %s", ErrInvalidPlan, t)
		}
	}
	return nil
}

// Without returns a copy of the plan with the given tables removed.
func (p *Plan) Without(skip map[string]bool) *Plan {
	out := &Plan{
		Source:      p.Source,
		Destination: p.Destination,
		Columns:     make(ColumnSelection, len(p.Columns)),
	}
	for _, t := range p.Tables {
		if skip[t] {
			continue
		}
		out.Tables = append(out.Tables, t)
		out.Columns[t] = p.Columns[t]
	}
	return out
}

// LoadPlan reads a plan saved by SavePlan. Passwords are never stored and
// must be supplied by the caller.
func LoadPlan(path string) (*Plan, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var p Plan
	if err := yaml.Unmarshal(content, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan file %s: %w", path, err)
	}
	if p.Columns == nil {
		p.Columns = make(ColumnSelection)
	}
	return &p, nil
}

// SavePlan writes the plan as YAML, without passwords.
func SavePlan(path string, p *Plan) error {
	content, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	return nil
}

// ParseColumnSpec parses "table=col1,col2" into its parts.
func ParseColumnSpec(spec string) (string, []string, error) {
	table, list, ok := strings.Cut(spec, "=")
	table = strings.TrimSpace(table)
	if !ok || table == "" {
		return "", nil, fmt.Errorf("column selection %q must look like table=col1,col2", spec)
	}
	var cols []string
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("column selection %q lists no columns", spec)
	}
	return table, cols, nil
}

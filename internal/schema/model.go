package schema

import "db-shuttle/internal/database"

// Column is one column of a table, in declared order.
type Column struct {
	Name          string
	Type          string
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool // auto_increment, serial or IDENTITY
	Default       string
}

// ColumnSelection maps a table to its chosen columns. Order matters: it aligns
// the source projection with the destination insert.
type ColumnSelection map[string][]string

// Plan is everything a transfer needs, collected before any rows move.
type Plan struct {
	Source      database.Descriptor `yaml:"source"`
	Destination database.Descriptor `yaml:"destination"`
	Tables      []string            `yaml:"tables"`
	Columns     ColumnSelection     `yaml:"columns"`
}

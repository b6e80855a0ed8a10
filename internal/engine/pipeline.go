package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"db-shuttle/internal/database"
	"db-shuttle/internal/schema"
)

// Pipeline runs a whole transfer: existence checks, reconciliation, table
// creation and the row copy. Decisions that need the user
// go through the Confirm callbacks; a nil callback means "no".
type Pipeline struct {
	Log      zerolog.Logger
	Reporter Reporter
	Options  Options
	Verify   bool

	ConfirmCreateDatabase func(name string) bool
	ConfirmCreateTables   func(missing []string) bool

	// connect opens a session; server selects a server-scope session.
	connect func(ctx context.Context, desc database.Descriptor, server bool) (*database.Session, error)
}

func (p *Pipeline) reporter() Reporter {
	if p.Reporter == nil {
		return NopReporter{}
	}
	return p.Reporter
}

func (p *Pipeline) open(ctx context.Context, desc database.Descriptor, server bool) (*database.Session, error) {
	if p.connect != nil {
		return p.connect(ctx, desc, server)
	}
	if server {
		return database.OpenServer(ctx, desc)
	}
	return database.Open(ctx, desc)
}

func (p *Pipeline) databaseExists(ctx context.Context, desc database.Descriptor) (bool, error) {
	if p.connect == nil {
		return schema.DatabaseExists(ctx, desc)
	}
	s, err := p.open(ctx, desc, true)
	if err != nil {
		return false, err
	}
	defer s.Close()
	return schema.HasDatabase(ctx, s, desc.Database)
}

func (p *Pipeline) ensureDatabase(ctx context.Context, desc database.Descriptor) error {
	if p.connect == nil {
		return EnsureDatabase(ctx, desc)
	}
	s, err := p.open(ctx, desc, true)
	if err != nil {
		return err
	}
	defer s.Close()
	return CreateDatabase(ctx, s, desc.Database)
}

// Run executes the plan. Connection failures and missing databases abort the
// run; table creation failures skip only the affected table.
func (p *Pipeline) Run(ctx context.Context, plan *schema.Plan) (*Report, error) {
	ctx = p.Log.WithContext(ctx)
	r := p.reporter()
	report := &Report{}

	if err := plan.Validate(); err != nil {
		return report, err
	}
	srcDesc := plan.Source.WithDefaults()
	dstDesc := plan.Destination.WithDefaults()

	// 1. Source database must exist; the destination is not touched otherwise.
	exists, err := p.databaseExists(ctx, srcDesc)
	if err != nil {
		return report, fmt.Errorf("source: %w", err)
	}
	if !exists {
		return report, fmt.Errorf("%w: source database %s", ErrDatabaseNotFound, srcDesc.Database)
	}

	src, err := p.open(ctx, srcDesc, false)
	if err != nil {
		return report, fmt.Errorf("source: %w", err)
	}
	defer src.Close()
	r.Connected("source", srcDesc)

	if err := CheckSelection(ctx, src, plan); err != nil {
		return report, err
	}

	// 2. Destination database, created on confirmation.
	exists, err = p.databaseExists(ctx, dstDesc)
	if err != nil {
		return report, fmt.Errorf("destination: %w", err)
	}
	if !exists {
		if p.ConfirmCreateDatabase == nil || !p.ConfirmCreateDatabase(dstDesc.Database) {
			return report, fmt.Errorf("%w: destination database %s", ErrDatabaseNotFound, dstDesc.Database)
		}
		if err := p.ensureDatabase(ctx, dstDesc); err != nil {
			return report, fmt.Errorf("destination: %w", err)
		}
		report.DatabaseCreated = true
		r.DatabaseCreated(dstDesc.Database)
	}

	dst, err := p.open(ctx, dstDesc, false)
	if err != nil {
		return report, fmt.Errorf("destination: %w", err)
	}
	defer dst.Close()
	r.Connected("destination", dstDesc)

	// 3. Reconcile tables.
	report.Missing, err = Reconcile(ctx, dst, plan.Tables, r)
	if err != nil {
		return report, err
	}

	skip := make(map[string]bool)
	if len(report.Missing) > 0 {
		if p.ConfirmCreateTables != nil && p.ConfirmCreateTables(report.Missing) {
			report.Created = CreateMissing(ctx, src, dst, report.Missing, r)
			for _, c := range report.Created {
				if c.Err != nil {
					skip[c.Table] = true
				}
			}
		} else {
			for _, t := range report.Missing {
				skip[t] = true
			}
		}
	}
	for _, t := range plan.Tables {
		if skip[t] {
			report.Skipped = append(report.Skipped, t)
		}
	}

	// 4. Copy rows.
	todo := plan.Without(skip)
	if len(todo.Tables) == 0 {
		p.Log.Warn().Msg("No tables left to transfer")
		return report, nil
	}

	report.Results, err = Transfer(ctx, src, dst, todo, p.Options, r)
	if p.Verify && ctx.Err() == nil {
		report.Results = VerifyCounts(ctx, src, dst, report.Results)
	}
	return report, err
}

// CheckSelection confirms every selected table and column exists on the source.
func CheckSelection(ctx context.Context, src *database.Session, plan *schema.Plan) error {
	tables, err := schema.ListTables(ctx, src)
	if err != nil {
		return err
	}
	available := make(map[string]bool, len(tables))
	for _, t := range tables {
		available[t] = true
	}

	for _, table := range plan.Tables {
		if !available[table] {
			return fmt.Errorf("%w: table %s does not exist in source database %s", schema.ErrInvalidPlan, table, src.Descriptor.Database)
		}
		cols, err := schema.ListColumns(ctx, src, table)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(cols))
		for _, c := range cols {
			have[c] = true
		}
		for _, c := range plan.Columns[table] {
			if !have[c] {
				return fmt.Errorf("%w: column %s.%s does not exist in source", schema.ErrInvalidPlan, table, c)
			}
		}
	}
	return nil
}

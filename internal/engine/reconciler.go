package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"db-shuttle/internal/database"
	"db-shuttle/internal/schema"
)

// Reconcile probes the destination for each selected table, reports presence
// per table, and returns the missing ones in selection order.
func Reconcile(ctx context.Context, dst *database.Session, tables []string, r Reporter) ([]string, error) {
	var missing []string
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		exists, err := schema.TableExists(ctx, dst, table)
		if err != nil {
			return nil, err
		}
		r.TablePresence(table, exists)
		if !exists {
			missing = append(missing, table)
		}
	}
	return missing, nil
}

// CreateMissing replays the source's DDL for each missing table on the
// destination, referenced tables first. A table that already exists is
// skipped, so calling it twice is a no-op. Failures are reported per table
// and do not stop the remaining tables.
func CreateMissing(ctx context.Context, src, dst *database.Session, missing []string, r Reporter) []CreateResult {
	log := zerolog.Ctx(ctx)

	order := missing
	deps, err := schema.Dependencies(ctx, src, missing)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read foreign keys, creating tables in selection order")
	} else {
		var broken []string
		order, broken = schema.SortByDependencies(missing, deps)
		for _, t := range broken {
			log.Warn().Str("table", t).Msg("Breaking circular foreign key dependency")
		}
	}

	results := make([]CreateResult, 0, len(order))
	for _, table := range order {
		res := createTable(ctx, src, dst, table)
		if res.Err != nil {
			log.Error().Err(res.Err).Str("table", table).Msg("Table creation failed")
		}
		r.TableCreated(res)
		results = append(results, res)
	}
	return results
}

func createTable(ctx context.Context, src, dst *database.Session, table string) CreateResult {
	res := CreateResult{Table: table}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	exists, err := schema.TableExists(ctx, dst, table)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrTableCreation, table, err)
		return res
	}
	if exists {
		res.Skipped = true
		return res
	}

	ddl, err := src.Dialect.CreateTableDDL(ctx, src.Conn(), table)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrTableCreation, table, err)
		return res
	}

	zerolog.Ctx(ctx).Debug().Str("table", table).Str("ddl", ddl).Msg("Replaying create statement")
	if _, err := dst.Conn().ExecContext(ctx, ddl); err != nil {
		if dst.Dialect.IsAlreadyExists(err) {
			res.Skipped = true
			return res
		}
		res.Err = fmt.Errorf("%w: %s: %w", ErrTableCreation, table, err)
		return res
	}

	res.Created = true
	return res
}

// EnsureDatabase creates desc.Database on desc's server unless it exists.
func EnsureDatabase(ctx context.Context, desc database.Descriptor) error {
	s, err := database.OpenServer(ctx, desc)
	if err != nil {
		return err
	}
	defer s.Close()

	return CreateDatabase(ctx, s, desc.Database)
}

// CreateDatabase runs the dialect's create statement on a server session with
// "create if not exists" semantics.
func CreateDatabase(ctx context.Context, s *database.Session, name string) error {
	exists, err := schema.HasDatabase(ctx, s, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := s.Conn().ExecContext(ctx, s.Dialect.CreateDatabaseQuery(name)); err != nil {
		if s.Dialect.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

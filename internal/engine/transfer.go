package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"db-shuttle/internal/database"
	"db-shuttle/internal/schema"
)

const defaultProgressEvery = 100

// Options tunes the row transfer.
type Options struct {
	// ProgressEvery is the number of rows between RowsCopied notifications.
	ProgressEvery int64
	// StopOnError aborts the run at the first failed table instead of moving on.
	StopOnError bool
	// CountRows counts source rows up front so progress has a total.
	CountRows bool
}

func (o Options) progressEvery() int64 {
	if o.ProgressEvery <= 0 {
		return defaultProgressEvery
	}
	return o.ProgressEvery
}

// Transfer copies the plan's tables in selection order, one destination
// transaction per table. A failed table is rolled back and reported; the run
// continues unless opts.StopOnError is set. Cancellation stops the run between
// rows or tables and rolls back the table in flight.
func Transfer(ctx context.Context, src, dst *database.Session, plan *schema.Plan, opts Options, r Reporter) ([]TableResult, error) {
	log := zerolog.Ctx(ctx)
	results := make([]TableResult, 0, len(plan.Tables))

	for _, table := range plan.Tables {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := TransferTable(ctx, src, dst, table, plan.Columns[table], opts, r)
		results = append(results, res)
		r.TableFinished(res)

		if res.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			log.Error().Err(res.Err).Str("table", table).Msg("Table transfer rolled back")
			if opts.StopOnError {
				return results, res.Err
			}
			continue
		}
		log.Info().Str("table", table).Int64("rows", res.Copied).Dur("elapsed", res.Duration).Msg("Table copied")
	}
	return results, nil
}

// TransferTable streams the selected columns of one table from src and
// inserts them into dst inside a single transaction.
func TransferTable(ctx context.Context, src, dst *database.Session, table string, cols []string, opts Options, r Reporter) TableResult {
	start := time.Now()
	res := TableResult{Table: table, Columns: cols, Expected: -1}

	err := copyTable(ctx, src, dst, &res, opts, r)
	res.Duration = time.Since(start)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Err = err
		} else {
			res.Err = fmt.Errorf("%w: %s: %w", ErrTransfer, table, err)
		}
	}
	return res
}

func copyTable(ctx context.Context, src, dst *database.Session, res *TableResult, opts Options, r Reporter) error {
	table, cols := res.Table, res.Columns
	if len(cols) == 0 {
		return fmt.Errorf("no columns selected")
	}

	// Destination metadata: every selected column must exist there too.
	dstCols, err := schema.Columns(ctx, dst, table)
	if err != nil {
		return err
	}
	hasIdentity, err := checkColumns(dstCols, cols)
	if err != nil {
		return err
	}

	if opts.CountRows {
		if res.Expected, err = schema.RowCount(ctx, src, table); err != nil {
			return err
		}
	}
	if res.DestBefore, err = schema.RowCount(ctx, dst, table); err != nil {
		return err
	}
	r.TableStarted(table, res.Expected)

	rows, err := src.Conn().QueryContext(ctx, src.Dialect.SelectQuery(table, cols))
	if err != nil {
		return fmt.Errorf("failed to query source rows: %w", err)
	}
	defer rows.Close()

	tx, err := dst.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// hooked is true while BeforeTable's session state is in effect.
	hooked := false
	defer func() {
		if tx == nil {
			return
		}
		tx.Rollback()
		if hooked {
			restoreSession(ctx, dst, table, hasIdentity)
		}
	}()

	hooked = true
	if err := dst.Dialect.BeforeTable(ctx, tx, table, hasIdentity); err != nil {
		return fmt.Errorf("before-table hook failed: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, dst.Dialect.InsertQuery(table, cols))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	every := opts.progressEvery()
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Fresh values per row, positionally aligned with cols.
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan row %d: %w", res.Copied+1, err)
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", res.Copied+1, err)
		}

		res.Copied++
		if res.Copied%every == 0 {
			r.RowsCopied(table, res.Copied)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating source rows: %w", err)
	}

	if err := dst.Dialect.AfterTable(ctx, tx, table, hasIdentity); err != nil {
		return fmt.Errorf("after-table hook failed: %w", err)
	}
	hooked = false
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	tx = nil

	r.RowsCopied(table, res.Copied)
	return nil
}

// restoreSession undoes BeforeTable on the destination connection after a
// rollback. FK checks and IDENTITY_INSERT are session settings the rollback
// leaves in place. It runs even when ctx is cancelled.
func restoreSession(ctx context.Context, dst *database.Session, table string, hasIdentity bool) {
	if err := dst.Dialect.AfterTable(context.WithoutCancel(ctx), dst.Conn(), table, hasIdentity); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("table", table).Msg("Could not restore session settings after rollback")
	}
}

// checkColumns verifies every selected column exists in the destination table
// and reports whether one of them is an identity column.
func checkColumns(dstCols []*schema.Column, selected []string) (bool, error) {
	byName := make(map[string]*schema.Column, len(dstCols))
	for _, c := range dstCols {
		byName[c.Name] = c
	}

	hasIdentity := false
	for _, name := range selected {
		c, ok := byName[name]
		if !ok {
			return false, fmt.Errorf("column %s does not exist in the destination table", name)
		}
		if c.AutoIncrement {
			hasIdentity = true
		}
	}
	return hasIdentity, nil
}

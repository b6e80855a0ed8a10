package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-shuttle/internal/database"
	"db-shuttle/internal/engine"
	"db-shuttle/internal/schema"
)

var (
	sourceName string
	destName   string
	tables     []string
	columns    []string
	planFile   string
	savePlan   string
	assumeYes  bool
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy selected tables and columns from a source to a destination database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = Log.WithContext(ctx)

		out := cmd.OutOrStdout()
		prompter := NewPrompter()

		plan, err := buildPlan(ctx, prompter)
		if err != nil {
			return err
		}
		if savePlan != "" {
			if err := schema.SavePlan(savePlan, plan); err != nil {
				return err
			}
			fmt.Fprintf(out, "Plan saved to %s\n", savePlan)
		}

		opts := transferOptions()
		reporter := newConsoleReporter(out, opts.CountRows)
		pipeline := &engine.Pipeline{
			Log:      Log,
			Reporter: reporter,
			Options:  opts,
			Verify:   viper.GetBool("settings.verify"),
			ConfirmCreateDatabase: func(name string) bool {
				return confirm(prompter, fmt.Sprintf("Destination database %s does not exist. Create it?", name))
			},
			ConfirmCreateTables: func(missing []string) bool {
				return confirm(prompter, fmt.Sprintf("Create %d missing table(s) on the destination (%s)?",
					len(missing), strings.Join(missing, ", ")))
			},
		}

		fmt.Fprintf(out, "\nCopying %d table(s) from %s to %s\n", len(plan.Tables), plan.Source, plan.Destination)
		report, err := pipeline.Run(ctx, plan)
		reporter.Finish()
		if report != nil && len(report.Results)+len(report.Skipped) > 0 {
			printSummary(out, report)
		}
		if err != nil {
			return err
		}
		if n := report.Failed(); n > 0 {
			return fmt.Errorf("%d of %d tables did not copy cleanly", n, len(plan.Tables))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(copyCmd)

	copyCmd.Flags().StringVar(&sourceName, "source", "", "Source connection name from the config file")
	copyCmd.Flags().StringVar(&destName, "dest", "", "Destination connection name from the config file")
	copyCmd.Flags().StringSliceVarP(&tables, "tables", "t", []string{}, "Tables to copy (comma-separated)")
	copyCmd.Flags().StringArrayVar(&columns, "columns", []string{}, "Columns of one table, as table=col1,col2 (repeatable)")
	copyCmd.Flags().StringVar(&planFile, "plan", "", "Run a plan saved with --save-plan")
	copyCmd.Flags().StringVar(&savePlan, "save-plan", "", "Save the selection to this file")
	copyCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Create missing databases and tables without asking")
	copyCmd.Flags().Bool("stop-on-error", false, "Stop at the first table that fails")
	copyCmd.Flags().Bool("verify", false, "Compare row counts after the copy")
	copyCmd.Flags().Int64("progress-every", 0, "Rows between progress updates")
	copyCmd.Flags().Bool("no-progress", false, "Do not count rows or draw progress bars")

	viper.BindPFlag("settings.stop_on_error", copyCmd.Flags().Lookup("stop-on-error"))
	viper.BindPFlag("settings.verify", copyCmd.Flags().Lookup("verify"))
	viper.BindPFlag("settings.progress_every", copyCmd.Flags().Lookup("progress-every"))
	viper.BindPFlag("settings.no_progress", copyCmd.Flags().Lookup("no-progress"))
	viper.SetDefault("settings.progress_every", 100)
}

func confirm(p *Prompter, question string) bool {
	if assumeYes {
		return true
	}
	ok, err := p.Confirm(question)
	if err != nil {
		Log.Warn().Err(err).Msg("No answer, assuming no")
		return false
	}
	return ok
}

// buildPlan loads the plan file, or asks for everything the flags left open.
func buildPlan(ctx context.Context, p *Prompter) (*schema.Plan, error) {
	if planFile != "" {
		plan, err := schema.LoadPlan(planFile)
		if err != nil {
			return nil, err
		}
		if plan.Source, err = completeDescriptor(p, "Source", plan.Source); err != nil {
			return nil, err
		}
		if plan.Destination, err = completeDescriptor(p, "Destination", plan.Destination); err != nil {
			return nil, err
		}
		return plan, plan.Validate()
	}

	src, err := resolveDescriptor(p, "Source", sourceName)
	if err != nil {
		return nil, err
	}
	selected, selection, err := selectFromSource(ctx, p, src)
	if err != nil {
		return nil, err
	}
	dst, err := resolveDescriptor(p, "Destination", destName)
	if err != nil {
		return nil, err
	}

	plan := &schema.Plan{Source: src, Destination: dst, Tables: selected, Columns: selection}
	return plan, plan.Validate()
}

// resolveDescriptor starts from the named connection, if any, and prompts
// for whatever is still missing.
func resolveDescriptor(p *Prompter, role, name string) (database.Descriptor, error) {
	var desc database.Descriptor
	if name != "" {
		var err error
		if desc, err = FindConnection(name); err != nil {
			return desc, err
		}
	}
	return completeDescriptor(p, role, desc)
}

func completeDescriptor(p *Prompter, role string, desc database.Descriptor) (database.Descriptor, error) {
	if desc.Password == "" {
		desc.Password = viper.GetString(strings.ToLower(role) + "_password")
	}
	return p.PromptDescriptor(role, desc)
}

// selectFromSource lists the source schema and lets the user pick tables and
// columns. Tables named by flags are taken with all their columns unless
// --columns narrows them.
func selectFromSource(ctx context.Context, p *Prompter, desc database.Descriptor) ([]string, schema.ColumnSelection, error) {
	exists, err := schema.DatabaseExists(ctx, desc)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, fmt.Errorf("%w: source database %s", engine.ErrDatabaseNotFound, desc.Database)
	}

	s, err := database.Open(ctx, desc)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()

	available, err := schema.ListTables(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	if len(available) == 0 {
		return nil, nil, fmt.Errorf("source database %s has no tables", desc.Database)
	}

	given, err := parseColumnFlags(columns)
	if err != nil {
		return nil, nil, err
	}

	interactive := len(tables) == 0
	selected := tables
	if interactive {
		fmt.Fprintf(p.out, "\nTables in %s:\n", desc.Database)
		if selected, err = p.SelectMany("Tables to copy", available, false); err != nil {
			return nil, nil, err
		}
	}

	selection := make(schema.ColumnSelection, len(selected))
	for _, table := range selected {
		if cols, ok := given[table]; ok {
			selection[table] = cols
			continue
		}
		all, err := schema.ListColumns(ctx, s, table)
		if err != nil {
			return nil, nil, err
		}
		if !interactive {
			selection[table] = all
			continue
		}
		fmt.Fprintf(p.out, "\nColumns of %s:\n", table)
		if selection[table], err = p.SelectMany("Columns to copy", all, true); err != nil {
			return nil, nil, err
		}
	}
	return selected, selection, nil
}

func parseColumnFlags(specs []string) (schema.ColumnSelection, error) {
	sel := make(schema.ColumnSelection, len(specs))
	for _, spec := range specs {
		table, cols, err := schema.ParseColumnSpec(spec)
		if err != nil {
			return nil, err
		}
		sel[table] = append(sel[table], cols...)
	}
	return sel, nil
}


package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"db-shuttle/internal/database"
	"db-shuttle/internal/schema"
)

var inspectConn string

var inspectCmd = &cobra.Command{
	Use:   "inspect [table]",
	Short: "List the tables of a database, or the columns of one table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := Log.WithContext(context.Background())

		desc, err := resolveDescriptor(NewPrompter(), "Source", inspectConn)
		if err != nil {
			return err
		}
		s, err := database.Open(ctx, desc)
		if err != nil {
			return err
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "🔍 %s\n", desc)
		if len(args) == 1 {
			return printColumns(ctx, out, s, args[0])
		}
		return printTables(ctx, out, s)
	},
}

func init() {
	RootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectConn, "conn", "", "Connection name from the config file")
}

// printTables lists the tables in creation order, parents first.
func printTables(ctx context.Context, out io.Writer, s *database.Session) error {
	tables, err := schema.ListTables(ctx, s)
	if err != nil {
		return err
	}
	deps, err := schema.Dependencies(ctx, s, tables)
	if err != nil {
		return err
	}
	sorted, broken := schema.SortByDependencies(tables, deps)

	for i, t := range sorted {
		count, err := schema.RowCount(ctx, s, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "[%02d] %-30s %10d rows", i+1, t, count)
		if len(deps[t]) > 0 {
			fmt.Fprintf(out, "  (Dependencies: %v)", deps[t])
		}
		fmt.Fprintln(out)
	}
	for _, t := range broken {
		fmt.Fprintf(out, "%s circular foreign key through %s\n", yellow("!"), t)
	}
	return nil
}

func printColumns(ctx context.Context, out io.Writer, s *database.Session, table string) error {
	cols, err := schema.Columns(ctx, s, table)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-4s %-30s %-24s %-5s %-4s %s\n", "#", "COLUMN", "TYPE", "NULL", "KEY", "EXTRA")
	for i, c := range cols {
		null, key, extra := "NO", "", ""
		if c.Nullable {
			null = "YES"
		}
		if c.PrimaryKey {
			key = "PRI"
		}
		if c.AutoIncrement {
			extra = "auto_increment"
		}
		if c.Default != "" {
			extra = strings.TrimSpace(extra + " default " + c.Default)
		}
		fmt.Fprintf(out, "%-4d %-30s %-24s %-5s %-4s %s\n", i+1, c.Name, c.Type, null, key, extra)
	}
	return nil
}

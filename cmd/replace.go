package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sitevault/internal/confirmation"
	"sitevault/internal/display"
	"sitevault/internal/replace"
)

// createSearchReplaceCommand creates the search-replace command
func createSearchReplaceCommand() *cobra.Command {
	var (
		tables []string
		dryRun bool
		force  bool
	)

	replaceCmd := &cobra.Command{
		Use:   "search-replace <search> <replace>",
		Short: "Rewrite a value across the database, serialized data included",
		Long: `Rewrite every occurrence of a value across the site's text columns.

Values embedded in PHP-serialized data are rewritten with their length
prefixes recalculated, so options and metadata survive the change intact.
Columns the old value does not appear in are left untouched.

Always preview with --dry-run first: it reports per-table counts and
before/after samples without writing anything.

Examples:
  # Preview a hostname change
  sitevault search-replace 'old.example' 'new.example' --dry-run

  # Apply it, limited to two tables
  sitevault search-replace 'old.example' 'new.example' --tables wp_options,wp_postmeta`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(true)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			if !dryRun {
				approved, err := confirmation.New(env.disp, force).Confirm(confirmation.Request{
					Action: "Search and replace",
					Target: fmt.Sprintf("%s on %s", env.cfg.Database.Database, env.cfg.Database.Host),
					Details: []string{
						fmt.Sprintf("Search:  %s", args[0]),
						fmt.Sprintf("Replace: %s", args[1]),
					},
					Warnings: []string{
						"Matching rows are rewritten in place",
						"Run with --dry-run first to preview the change",
					},
				})
				if err != nil {
					return err
				}
				if !approved {
					return nil
				}
			}

			env.disp.Header("Search and replace")
			bar := env.attachProgressBar("scanning tables")
			finished, report, err := env.engine.SearchReplace(ctx, replace.Options{
				Search:  args[0],
				Replace: args[1],
				Tables:  tables,
				DryRun:  dryRun,
			})
			if err != nil {
				bar.Finish("search-replace failed")
				return err
			}
			bar.Finish("search-replace complete")

			if env.disp.Structured() {
				return env.disp.Emit(map[string]interface{}{"job": finished, "report": report})
			}
			reportReplaceOutcome(env.disp, report, dryRun)
			return nil
		},
	}

	replaceCmd.Flags().StringSliceVar(&tables, "tables", nil, "tables to scan (defaults to every prefixed base table)")
	replaceCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	replaceCmd.Flags().BoolVar(&force, "force", false, "apply without confirmation")
	return replaceCmd
}

// createMigrateURLCommand creates the migrate-url command
func createMigrateURLCommand() *cobra.Command {
	var (
		dryRun bool
		force  bool
	)

	migrateCmd := &cobra.Command{
		Use:   "migrate-url <old-url> <new-url>",
		Short: "Move the site to a new URL",
		Long: `Rewrite every stored spelling of the old URL to the new one: the bare
form, its JSON-escaped and percent-encoded spellings, the
protocol-relative form, and the www/non-www counterpart of each.
Serialized PHP values are length-corrected.

The pass covers the options table, content, and metadata, so links and
embedded settings all follow the move.

Examples:
  # Preview the move
  sitevault migrate-url http://old.example https://new.example --dry-run

  # Apply it
  sitevault migrate-url http://old.example https://new.example`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(true)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			if !dryRun {
				approved, err := confirmation.New(env.disp, force).Confirm(confirmation.Request{
					Action: "Migrate site URL",
					Target: fmt.Sprintf("%s on %s", env.cfg.Database.Database, env.cfg.Database.Host),
					Details: []string{
						fmt.Sprintf("From: %s", args[0]),
						fmt.Sprintf("To:   %s", args[1]),
					},
					Warnings: []string{
						"Every stored spelling of the old URL is rewritten in place",
					},
				})
				if err != nil {
					return err
				}
				if !approved {
					return nil
				}
			}

			env.disp.Header("URL migration")
			bar := env.attachProgressBar("scanning tables")
			finished, report, err := env.engine.MigrateURL(ctx, args[0], args[1], dryRun)
			if err != nil {
				bar.Finish("migration failed")
				return err
			}
			bar.Finish("migration complete")

			if env.disp.Structured() {
				return env.disp.Emit(map[string]interface{}{"job": finished, "report": report})
			}
			reportReplaceOutcome(env.disp, report, dryRun)
			return nil
		},
	}

	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	migrateCmd.Flags().BoolVar(&force, "force", false, "apply without confirmation")
	return migrateCmd
}

// reportReplaceOutcome prints per-table counts and dry-run previews.
func reportReplaceOutcome(disp *display.Service, report *replace.Report, dryRun bool) {
	table := disp.NewTable("TABLE", "ROWS SCANNED", "CELLS CHANGED", "ROWS UPDATED")
	table.Align(1, display.AlignRight)
	table.Align(2, display.AlignRight)
	table.Align(3, display.AlignRight)
	for _, t := range report.Tables {
		table.Append(t.Table,
			fmt.Sprintf("%d", t.RowsScanned),
			fmt.Sprintf("%d", t.CellsChanged),
			fmt.Sprintf("%d", t.RowsUpdated))
	}
	table.RenderTo(disp.Writer())

	verb := "changed"
	if dryRun {
		verb = "would change"
	}
	disp.Success(fmt.Sprintf("%d cells %s across %d rows in %s",
		report.TotalCells, verb, report.TotalRows, report.Duration.Round(timeRounding)))

	if dryRun && len(report.Previews) > 0 && !disp.Quiet() {
		disp.Header("Previews")
		for _, p := range report.Previews {
			disp.Info(fmt.Sprintf("%s.%s", p.Table, p.Column))
			disp.Printf("  - %s\n", truncateValue(p.Before))
			disp.Printf("  + %s\n", truncateValue(p.After))
		}
	}
}

// truncateValue keeps preview lines short enough for a terminal.
func truncateValue(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Command validate loads and cleans an attendance export without rendering
// anything, then prints the cleaning report. It exits non-zero when the
// export cannot be cleaned.
//
// Usage:
//
//	validate <input-file>
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"text/tabwriter"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/adapter/tabular"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/config"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/pipeline"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <input-file>",
		Short: "Clean an attendance export and report what was dropped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cfg, sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat), args[0], stdout)
		},
	}
}

func run(cfg *config.Config, logger *slog.Logger, input string, stdout io.Writer) error {
	raw, err := tabular.NewLoader(cfg.InputDelimiter, logger).Load(input)
	if err != nil {
		return err
	}

	cleaner := pipeline.NewCleaner(pipeline.CleanerConfig{
		WeekdayNames:       cfg.WeekdayNames,
		BulkErrorThreshold: cfg.BulkErrorThreshold,
		ParseFailurePolicy: cfg.ParseFailurePolicy,
	})
	cleaned, report, err := cleaner.Clean(raw)
	if err != nil {
		return err
	}
	if _, err := pipeline.Records(cleaned); err != nil {
		return err
	}

	return printReport(stdout, input, report)
}

func printReport(w io.Writer, input string, r pipeline.CleanReport) error {
	fmt.Fprintf(w, "=== Cleaning report: %s ===\n\n", input)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "rows in\t%d\n", r.RowsIn)
	fmt.Fprintf(tw, "rows out\t%d\n", r.RowsOut)
	for _, reason := range pipeline.DropReasons() {
		fmt.Fprintf(tw, "dropped: %s\t%d\n", reason, r.Dropped[reason])
	}
	fmt.Fprintf(tw, "null weekdays\t%d\n", r.NullWeekdays)
	fmt.Fprintf(tw, "unparseable end timestamps\t%d\n", r.UnparseableEnds)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.BulkDates) > 0 {
		fmt.Fprintln(w, "\nBulk-entry dates excluded:")
		for _, b := range r.BulkDates {
			fmt.Fprintf(w, "  %s (%d rows)\n", b.Date, b.Rows)
		}
	}
	return nil
}

// Command explore cleans a volunteer attendance export and renders the
// exploration charts into an output directory.
//
// Usage:
//
//	explore <input-file> <output-dir>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/adapter/artifact"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/adapter/boundary"
	kafkaadapter "github.com/nickswetUCSD/feeding-sd-exploration/internal/adapter/kafka"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/adapter/tabular"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/chart"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/config"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/observability"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/pipeline"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "explore <input-file> <output-dir>",
		Short: "Clean a volunteer attendance export and render exploration charts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("run_id", uuid.New().String())
			return run(cmd.Context(), cfg, logger, args[0], args[1], stdout)
		},
	}
}

// run executes one pass and prints a short summary to stdout.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, input, outDir string, stdout io.Writer) error {
	metrics := observability.NewMetrics()
	defer func() {
		if cfg.MetricsTextfile == "" {
			return
		}
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}()

	writer, err := artifact.NewWriter(outDir)
	if err != nil {
		return err
	}

	runner := pipeline.New(
		tabular.NewLoader(cfg.InputDelimiter, logger),
		pipeline.NewCleaner(pipeline.CleanerConfig{
			WeekdayNames:       cfg.WeekdayNames,
			BulkErrorThreshold: cfg.BulkErrorThreshold,
			ParseFailurePolicy: cfg.ParseFailurePolicy,
		}),
		writer, logger, metrics, cfg.ChartWorkers,
	)
	runner.AddArtifacts(artifacts(cfg, logger, metrics)...)

	if cfg.KafkaEnabled() {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		runner.SetPublisher(publisher)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "batch_size", cfg.KafkaBatchSize)
	}

	logger.Info("run started", "input", input, "output_dir", writer.Dir())
	summary, err := runner.Run(ctx, input)
	printSummary(stdout, summary)
	if err != nil {
		logger.Error("run failed", "error", err)
		return err
	}
	logger.Info("run complete", "records", summary.Records, "artifacts", len(summary.Written))
	return nil
}

// artifacts builds the four chart builders in report order.
func artifacts(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) []pipeline.Artifact {
	client := boundary.NewClient(cfg.BoundaryTimeout, logger, metrics)
	source := boundary.NewCachedSource(client, cfg.BoundaryCacheDir, cfg.BoundaryCacheTTL, logger, metrics)

	return []pipeline.Artifact{
		chart.NewHoursDistribution(chart.HoursOptions{
			Bins:            cfg.HistogramBins,
			MaxSessionHours: cfg.MaxSessionHours,
			Raw:             cfg.HoursRaw,
		}),
		chart.NewWeektimeHeatmap(chart.HeatmapOptions{
			BucketHours:  cfg.HeatmapBucketHours,
			WeeksPerYear: cfg.WeeksPerYear,
			WeekdayNames: cfg.WeekdayNames,
		}),
		chart.NewParticipationByYear(),
		chart.NewLocationPopularity(source, chart.LocationOptions{
			URLs: cfg.BoundaryURLs,
			Key:  cfg.BoundaryKey,
		}, logger),
	}
}

func printSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintf(w, "rows in: %d, rows out: %d, dropped: %d\n", s.Report.RowsIn, s.Report.RowsOut, s.Report.TotalDropped())
	for _, path := range s.Written {
		fmt.Fprintf(w, "wrote %s\n", path)
	}
	names := make([]string, 0, len(s.Failed))
	for name := range s.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "FAILED %s: %v\n", name, s.Failed[name])
	}
	if s.Published > 0 {
		fmt.Fprintf(w, "published %d records\n", s.Published)
	}
}

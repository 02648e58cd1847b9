package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/observability"
	"golang.org/x/sync/errgroup"
)

// ErrArtifactsFailed is returned by Run when at least one artifact or the
// publisher failed. The remaining artifacts are still written.
var ErrArtifactsFailed = errors.New("one or more artifacts failed")

// Extractor reads the input export into a table.
type Extractor interface {
	Extract(ctx context.Context, path string) (dataframe.DataFrame, error)
}

// Artifact renders one named chart from the cleaned records.
type Artifact interface {
	Name() string
	Build(ctx context.Context, records []domain.CleanedRecord, w io.Writer) error
}

// ArtifactWriter persists a rendered artifact under name and returns its path.
// Nothing is left on disk when render fails.
type ArtifactWriter interface {
	Write(name string, render func(io.Writer) error) (string, error)
}

// Publisher ships cleaned records to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, records []domain.CleanedRecord) error
}

// Summary describes a completed run.
type Summary struct {
	Report    CleanReport
	Records   int
	Written   []string         // artifact paths in completion order
	Failed    map[string]error // artifact name -> failure
	Published int
}

// Runner wires extract, clean, chart fan-out and the optional publisher.
type Runner struct {
	extractor Extractor
	cleaner   *Cleaner
	writer    ArtifactWriter
	artifacts []Artifact
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	workers   int
}

// New creates a Runner. workers bounds how many artifacts render at once.
func New(e Extractor, c *Cleaner, w ArtifactWriter, logger *slog.Logger, metrics *observability.Metrics, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		extractor: e,
		cleaner:   c,
		writer:    w,
		logger:    logger,
		metrics:   metrics,
		workers:   workers,
	}
}

// AddArtifacts registers chart builders to run after cleaning.
func (r *Runner) AddArtifacts(a ...Artifact) {
	r.artifacts = append(r.artifacts, a...)
}

// SetPublisher enables publishing of cleaned records.
func (r *Runner) SetPublisher(p Publisher) {
	r.publisher = p
}

// Run executes one pass over input. Extract and clean failures abort the run.
// Artifact and publish failures are isolated and reported together as
// ErrArtifactsFailed once everything else has finished.
func (r *Runner) Run(ctx context.Context, input string) (Summary, error) {
	summary := Summary{Failed: make(map[string]error)}

	start := time.Now()
	raw, err := r.extractor.Extract(ctx, input)
	if err != nil {
		return summary, fmt.Errorf("extract: %w", err)
	}
	r.observeStage("extract", start)
	r.metrics.RowsLoaded.Add(float64(raw.Nrow()))

	cleaned, report, err := r.cleaner.CleanObserved(raw, func(stage string, elapsed time.Duration) {
		r.metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	})
	summary.Report = report
	if err != nil {
		return summary, err
	}
	r.recordReport(report)

	records, err := Records(cleaned)
	if err != nil {
		return summary, err
	}
	summary.Records = len(records)

	r.runArtifacts(ctx, records, &summary)

	if r.publisher != nil {
		start := time.Now()
		if err := r.publisher.Publish(ctx, records); err != nil {
			r.logger.Error("publish failed", "error", err)
			summary.Failed["publish"] = fmt.Errorf("publish: %w", err)
			r.metrics.ArtifactFailures.WithLabelValues("publish").Inc()
		} else {
			summary.Published = len(records)
			r.metrics.RecordsPublished.Add(float64(len(records)))
			r.logger.Info("records published", "count", len(records))
		}
		r.observeStage("publish", start)
	}

	if len(summary.Failed) > 0 {
		errs := make([]error, 0, len(summary.Failed))
		for _, a := range r.artifacts {
			if err, ok := summary.Failed[a.Name()]; ok {
				errs = append(errs, err)
			}
		}
		if err, ok := summary.Failed["publish"]; ok {
			errs = append(errs, err)
		}
		return summary, fmt.Errorf("%w: %w", ErrArtifactsFailed, errors.Join(errs...))
	}
	return summary, nil
}

func (r *Runner) runArtifacts(ctx context.Context, records []domain.CleanedRecord, summary *Summary) {
	start := time.Now()
	defer r.observeStage("artifacts", start)

	var (
		mu      sync.Mutex
		created int
		total   = len(r.artifacts)
	)

	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, a := range r.artifacts {
		g.Go(func() error {
			path, err := r.writer.Write(a.Name(), func(w io.Writer) error {
				return a.Build(ctx, records, w)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed[a.Name()] = fmt.Errorf("artifact %s: %w", a.Name(), err)
				r.metrics.ArtifactFailures.WithLabelValues(a.Name()).Inc()
				r.logger.Error("artifact failed", "artifact", a.Name(), "error", err)
				return nil
			}
			created++
			summary.Written = append(summary.Written, path)
			r.metrics.ArtifactsWritten.Inc()
			r.logger.Info(fmt.Sprintf("%d/%d artifacts created", created, total),
				"artifact", a.Name(),
				"path", path,
			)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Runner) recordReport(report CleanReport) {
	r.metrics.RowsCleaned.Add(float64(report.RowsOut))
	for reason, n := range report.Dropped {
		r.metrics.RowsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}
	for _, b := range report.BulkDates {
		r.logger.Warn("bulk-entry date excluded", "date", b.Date, "rows", b.Rows)
	}
	if report.UnparseableEnds > 0 {
		r.logger.Warn("unparseable end timestamps nulled", "rows", report.UnparseableEnds)
	}
	r.logger.Info("input cleaned",
		"rows_in", report.RowsIn,
		"rows_out", report.RowsOut,
		"dropped", report.TotalDropped(),
	)
}

func (r *Runner) observeStage(stage string, start time.Time) {
	r.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for one pipeline run.
// The run is a batch job, so metrics live on a private registry that is
// written out as a textfile instead of being scraped.
type Metrics struct {
	Registry *prometheus.Registry

	RowsLoaded    prometheus.Counter
	RowsCleaned   prometheus.Counter
	RowsDropped   *prometheus.CounterVec   // labels: reason
	StageDuration *prometheus.HistogramVec // labels: stage (extract, each cleaning stage, artifacts, publish)

	// Artifact metrics.
	ArtifactsWritten prometheus.Counter
	ArtifactFailures *prometheus.CounterVec // labels: artifact

	// Boundary fetch metrics.
	BoundaryFetches       *prometheus.CounterVec // labels: outcome={success,error}
	BoundaryCache         *prometheus.CounterVec // labels: result={memory,disk,miss}
	BoundaryFetchDuration prometheus.Histogram

	RecordsPublished prometheus.Counter
}

// NewMetrics creates all run metrics and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "volunteer_explore",
			Name:      "rows_loaded_total",
			Help:      "Rows read from the input export.",
		}),
		RowsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "volunteer_explore",
			Name:      "rows_cleaned_total",
			Help:      "Rows that survived cleaning.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "volunteer_explore",
			Name:      "rows_dropped_total",
			Help:      "Rows removed during cleaning by reason.",
		}, []string{"reason"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "volunteer_explore",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		ArtifactsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "volunteer_explore",
			Name:      "artifacts_written_total",
			Help:      "Chart artifacts written to the output directory.",
		}),
		ArtifactFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "volunteer_explore",
			Name:      "artifact_failures_total",
			Help:      "Artifacts that failed to render or write.",
		}, []string{"artifact"}),
		BoundaryFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "volunteer_explore",
			Name:      "boundary_fetches_total",
			Help:      "Boundary document downloads by outcome.",
		}, []string{"outcome"}),
		BoundaryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "volunteer_explore",
			Name:      "boundary_cache_total",
			Help:      "Boundary cache lookups by result.",
		}, []string{"result"}),
		BoundaryFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "volunteer_explore",
			Name:      "boundary_fetch_duration_seconds",
			Help:      "Boundary document download duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "volunteer_explore",
			Name:      "records_published_total",
			Help:      "Cleaned records published to Kafka.",
		}),
	}

	m.Registry.MustRegister(
		m.RowsLoaded,
		m.RowsCleaned,
		m.RowsDropped,
		m.StageDuration,
		m.ArtifactsWritten,
		m.ArtifactFailures,
		m.BoundaryFetches,
		m.BoundaryCache,
		m.BoundaryFetchDuration,
		m.RecordsPublished,
	)

	return m
}

// WriteTextfile writes the current metric values in the node_exporter
// textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// Package prometheus records ingestion metrics with the Prometheus client
// and writes them out in the node_exporter textfile format.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.MetricsRecorder = (*Recorder)(nil)

// Record outcome label values.
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Recorder provides observability for ingestion runs.
// Each Recorder owns its registry so runs and tests never collide.
type Recorder struct {
	registry *prometheus.Registry

	Records       *prometheus.CounterVec
	Batches       *prometheus.CounterVec
	BatchDuration prometheus.Histogram
	ParseErrors   prometheus.Counter
	RunRecords    *prometheus.GaugeVec
	RunRate       prometheus.Gauge
	RunDuration   prometheus.Gauge
	RunTimestamp  prometheus.Gauge
}

// New creates a Recorder with all ingestion metrics registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nuvie_ingest_records_total",
			Help: "Persistence outcomes per record",
		}, []string{"outcome"}),
		Batches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nuvie_ingest_batches_total",
			Help: "Finished batch tasks by status",
		}, []string{"status"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nuvie_ingest_batch_duration_seconds",
			Help:    "Wall time of one batch task",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "nuvie_ingest_parse_errors_total",
			Help: "Rows rejected by the parser",
		}),
		RunRecords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nuvie_ingest_last_run_records",
			Help: "Record counts of the last completed run by stage",
		}, []string{"stage"}),
		RunRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nuvie_ingest_last_run_success_rate_percent",
			Help: "Created records as a percentage of valid records in the last run",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nuvie_ingest_last_run_duration_seconds",
			Help: "Wall time of the last completed run",
		}),
		RunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nuvie_ingest_last_run_timestamp_seconds",
			Help: "Unix time the last run completed",
		}),
	}
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveBatch records one finished batch.
func (r *Recorder) ObserveBatch(d time.Duration, stats domain.IngestStats, failed bool) {
	r.BatchDuration.Observe(d.Seconds())
	status := "ok"
	if failed {
		status = "failed"
	}
	r.Batches.WithLabelValues(status).Inc()
	r.Records.WithLabelValues(OutcomeCreated).Add(float64(stats.Created))
	r.Records.WithLabelValues(OutcomeSkipped).Add(float64(stats.Skipped))
	r.Records.WithLabelValues(OutcomeError).Add(float64(stats.Errors))
}

// RecordParseError counts one rejected row.
func (r *Recorder) RecordParseError() {
	r.ParseErrors.Inc()
}

// RecordRun records the summary of a completed run.
func (r *Recorder) RecordRun(report *domain.IngestReport) {
	r.RunRecords.WithLabelValues("read").Set(float64(report.TotalRows))
	r.RunRecords.WithLabelValues("valid").Set(float64(report.ValidRecords))
	r.RunRecords.WithLabelValues(OutcomeCreated).Set(float64(report.Stats.Created))
	r.RunRecords.WithLabelValues(OutcomeSkipped).Set(float64(report.Stats.Skipped))
	r.RunRecords.WithLabelValues(OutcomeError).Set(float64(report.Stats.Errors))
	r.RunRate.Set(report.SuccessRate())
	r.RunDuration.Set(report.Duration.Seconds())
	r.RunTimestamp.SetToCurrentTime()
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

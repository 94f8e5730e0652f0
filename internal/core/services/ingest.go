package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driving"
	"github.com/nuvie/nuvie-ingestor/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// IngestService sequences fetch, CSV read, parse and batch persistence.
type IngestService struct {
	config      *domain.Config
	fetcher     driven.DatasetFetcher
	rows        driven.RowSource
	coordinator *Coordinator
	metrics     driven.MetricsRecorder
}

// NewIngestService creates the pipeline driver.
// fetcher may be nil when downloads are always skipped; metrics may be nil.
func NewIngestService(
	config *domain.Config,
	fetcher driven.DatasetFetcher,
	rows driven.RowSource,
	store driven.PatientStore,
	metrics driven.MetricsRecorder,
) *IngestService {
	return &IngestService{
		config:      config,
		fetcher:     fetcher,
		rows:        rows,
		coordinator: NewCoordinator(store, metrics),
		metrics:     metrics,
	}
}

// Datasets returns the registered datasets in name order.
func (s *IngestService) Datasets() []domain.Dataset {
	names := s.config.DatasetNames()
	out := make([]domain.Dataset, 0, len(names))
	for _, name := range names {
		out = append(out, s.config.Datasets[name])
	}
	return out
}

// Ingest runs the full pipeline for the named dataset.
func (s *IngestService) Ingest(
	ctx context.Context,
	dataset string,
	opts domain.IngestOptions,
) (*domain.IngestReport, error) {
	started := time.Now()

	ds, err := s.config.Dataset(dataset)
	if err != nil {
		logger.Error("Unsupported dataset", "dataset", dataset)
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = s.config.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger.Info("Starting Nuvie Data Ingestor",
		"dataset", ds.Name,
		"workers", workers,
		"skip_download", opts.SkipDownload)

	if !opts.SkipDownload {
		if s.fetcher == nil {
			return nil, fmt.Errorf("%w: fetcher not configured", domain.ErrFetch)
		}
		if err := s.fetcher.Ensure(ctx, ds, s.config.DownloadDir); err != nil {
			logger.Error("Failed to download dataset", "error", err)
			return nil, err
		}
	}

	csvPath := filepath.Join(s.config.DownloadDir, ds.CSVName)
	if _, err := os.Stat(csvPath); err != nil {
		logger.Error("Patients CSV file not found", "path", csvPath)
		return nil, fmt.Errorf("patients csv %s: %w", csvPath, domain.ErrNotFound)
	}

	logger.Info("Starting patient processing", "file", csvPath, "workers", workers)

	report := &domain.IngestReport{Dataset: ds.Name, Workers: workers}
	patients, err := s.parseFile(csvPath, report)
	if err != nil {
		return nil, err
	}

	logger.Info("CSV parsing completed",
		"total_rows", report.TotalRows,
		"valid_patients", report.ValidRecords,
		"parse_errors", report.ParseErrors)

	if len(patients) == 0 {
		logger.Error("No valid patients found in CSV file")
		return report, domain.ErrNoValidRecords
	}

	report.BatchSize = BatchSize(len(patients), workers)
	report.BatchCount = (len(patients) + report.BatchSize - 1) / report.BatchSize
	logger.Info("Processing patients in batches",
		"total_patients", len(patients),
		"batch_count", report.BatchCount,
		"batch_size", report.BatchSize)

	report.Stats = s.coordinator.Run(ctx, patients, workers)
	report.Duration = time.Since(started)

	logger.Info("Patient processing completed",
		"total_processed", report.Stats.Total(),
		"created", report.Stats.Created,
		"skipped", report.Stats.Skipped,
		"errors", report.Stats.Errors,
		"success_rate", fmt.Sprintf("%.1f%%", report.SuccessRate()))

	if s.metrics != nil {
		s.metrics.RecordRun(report)
	}
	return report, nil
}

// parseFile streams the CSV through the parser, collecting valid patients
// and counting rejected rows in report.
func (s *IngestService) parseFile(path string, report *domain.IngestReport) ([]domain.Patient, error) {
	var patients []domain.Patient

	for raw, err := range s.rows.Rows(path) {
		if err != nil {
			if !errors.Is(err, domain.ErrParse) {
				logger.Error("Failed to read CSV file", "path", path, "error", err)
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			report.TotalRows++
			report.ParseErrors++
			s.recordParseError()
			logger.Warn("Failed to read CSV row", "error", err)
			continue
		}
		report.TotalRows++

		patient, err := ParseRow(raw)
		if err != nil {
			report.ParseErrors++
			s.recordParseError()
			var pe *domain.ParseError
			rowID := "unknown"
			if errors.As(err, &pe) {
				rowID = pe.RowID
			}
			logger.Warn("Failed to parse CSV row", "error", err, "row_id", rowID)
			continue
		}
		patients = append(patients, patient)
	}

	report.ValidRecords = len(patients)
	return patients, nil
}

func (s *IngestService) recordParseError() {
	if s.metrics != nil {
		s.metrics.RecordParseError()
	}
}

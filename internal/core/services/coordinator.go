package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
	"github.com/nuvie/nuvie-ingestor/internal/logger"
)

// batchesPerWorker is how many batches each worker gets on average,
// which smooths out uneven batch durations.
const batchesPerWorker = 4

// Coordinator persists parsed patients in concurrent batches.
type Coordinator struct {
	store   driven.PatientStore
	metrics driven.MetricsRecorder
}

// NewCoordinator creates a coordinator. metrics may be nil.
func NewCoordinator(store driven.PatientStore, metrics driven.MetricsRecorder) *Coordinator {
	return &Coordinator{store: store, metrics: metrics}
}

// BatchSize returns the number of records per batch for n records and
// the given worker count: max(1, n / (workers*4)).
func BatchSize(n, workers int) int {
	if workers < 1 {
		workers = 1
	}
	return max(1, n/(workers*batchesPerWorker))
}

// Partition splits records into contiguous batches. The last batch may be
// shorter. Batches share the backing array but never overlap.
func Partition(records []domain.Patient, workers int) [][]domain.Patient {
	if len(records) == 0 {
		return nil
	}
	size := BatchSize(len(records), workers)
	batches := make([][]domain.Patient, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		batches = append(batches, records[start:end:end])
	}
	return batches
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeSkipped
	outcomeError
)

type batchResult struct {
	index int
	size  int
	stats domain.IngestStats
	err   error
}

// Run persists records using exactly workers concurrent batch tasks and
// returns the aggregated outcome. Failures never abort the run: a failing
// record counts as one error, a failing batch counts all of its records.
func (c *Coordinator) Run(ctx context.Context, records []domain.Patient, workers int) domain.IngestStats {
	if workers < 1 {
		workers = 1
	}
	batches := Partition(records, workers)

	results := make(chan batchResult)
	var g errgroup.Group
	g.SetLimit(workers)

	go func() {
		for i, batch := range batches {
			g.Go(func() error {
				results <- c.runBatch(ctx, i, batch)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	// Results arrive in completion order.
	var total domain.IngestStats
	for res := range results {
		if res.err != nil {
			logger.Error("Batch processing failed", "batch", res.index, "size", res.size, "error", res.err)
		} else {
			logger.Info("Batch completed",
				"batch", res.index,
				"created", res.stats.Created,
				"skipped", res.stats.Skipped,
				"errors", res.stats.Errors)
		}
		total.Add(res.stats)
	}
	return total
}

// runBatch contains a panic escaping processBatch so one runaway batch
// cannot take down the run.
func (c *Coordinator) runBatch(ctx context.Context, index int, batch []domain.Patient) (res batchResult) {
	start := time.Now()
	res = batchResult{index: index, size: len(batch)}

	defer func() {
		if r := recover(); r != nil {
			logger.Debug("Batch panic stack", "batch", index, "stack", string(debug.Stack()))
			res.err = fmt.Errorf("%w: panic: %v", domain.ErrBatchFailed, r)
		}
		if res.err != nil {
			res.stats = domain.IngestStats{Errors: len(batch)}
		}
		if c.metrics != nil {
			c.metrics.ObserveBatch(time.Since(start), res.stats, res.err != nil)
		}
	}()

	res.stats, res.err = c.processBatch(ctx, batch)
	return res
}

// processBatch runs every record of the batch through one store session,
// in input order.
func (c *Coordinator) processBatch(ctx context.Context, batch []domain.Patient) (domain.IngestStats, error) {
	var stats domain.IngestStats

	session, err := c.store.Session(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: open session: %w", domain.ErrBatchFailed, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("Failed to close store session", "error", err)
		}
	}()

	for i := range batch {
		switch c.processRecord(ctx, session, &batch[i]) {
		case outcomeCreated:
			stats.Created++
		case outcomeSkipped:
			stats.Skipped++
		default:
			stats.Errors++
		}
	}
	return stats, nil
}

func (c *Coordinator) processRecord(ctx context.Context, session driven.PatientSession, p *domain.Patient) outcome {
	_, err := session.FindBySSN(ctx, p.SSN)
	switch {
	case err == nil:
		logger.Debug("Patient already exists, skipping", "ssn", p.SSN)
		return outcomeSkipped
	case !errors.Is(err, domain.ErrNotFound):
		logger.Error("Failed to create patient", "patient_id", p.ID, "ssn", p.SSN, "error", err)
		return outcomeError
	}

	// The store's unique constraint is authoritative; a concurrent insert of
	// the same SSN surfaces here as ErrAlreadyExists.
	if err := session.Insert(ctx, p); err != nil {
		logger.Error("Failed to create patient", "patient_id", p.ID, "ssn", p.SSN, "error", err)
		return outcomeError
	}
	logger.Debug("Patient created successfully", "patient_id", p.ID)
	return outcomeCreated
}

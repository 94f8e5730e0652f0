package driving

import (
	"context"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

// Ingestor runs the fetch, parse and persist pipeline for a dataset.
type Ingestor interface {
	// Ingest processes the named dataset.
	// Per-row parse failures and per-record persistence failures are
	// reflected in the report, not returned as errors. Returned errors are
	// fatal to the run: unknown dataset, fetch failure, missing CSV or
	// no valid records.
	Ingest(ctx context.Context, dataset string, opts domain.IngestOptions) (*domain.IngestReport, error)

	// Datasets returns the registered datasets in name order.
	Datasets() []domain.Dataset
}

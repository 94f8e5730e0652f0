package driven

import (
	"context"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

// DatasetFetcher makes sure a dataset's CSV is present on local disk.
type DatasetFetcher interface {
	// Ensure downloads and extracts the dataset into dir if needed.
	// Returns an error wrapping domain.ErrFetch on failure.
	Ensure(ctx context.Context, ds domain.Dataset, dir string) error
}

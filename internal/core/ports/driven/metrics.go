package driven

import (
	"time"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

// MetricsRecorder receives ingestion measurements.
// Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	// ObserveBatch records one finished batch: its duration and the
	// created/skipped/error counts it contributed.
	ObserveBatch(d time.Duration, stats domain.IngestStats, failed bool)

	// RecordParseError counts one rejected row.
	RecordParseError()

	// RecordRun records the result of a whole run.
	RecordRun(report *domain.IngestReport)
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/logger"
)

var (
	ingestDataset      string
	ingestWorkers      int
	ingestSkipDownload bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download, parse and store a patient dataset",
	Long: `Runs the full pipeline for a dataset: download and extract the archive,
parse every patient row, then store the valid records in concurrent batches.

Rows that fail to parse and records that fail to store are counted in the
summary without stopping the run.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	addIngestFlags(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}

func addIngestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ingestDataset, "dataset", domain.DefaultDatasetName, "dataset to ingest")
	cmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 0, "concurrent batch workers (default from config, else CPU count)")
	cmd.Flags().BoolVar(&ingestSkipDownload, "skip-download", false, "use the already extracted CSV")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingestWorkers < 0 {
		return fmt.Errorf("%w: --workers must not be negative, got %d", domain.ErrConfig, ingestWorkers)
	}

	ctx := cmd.Context()
	if err := ensureServices(ctx, ingestDataset); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	opts := domain.IngestOptions{
		Workers:      ingestWorkers,
		SkipDownload: ingestSkipDownload,
	}
	report, err := ingestService.Ingest(ctx, ingestDataset, opts)
	writeMetrics()

	if report != nil {
		printSummary(cmd, report, err)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return nil
}

// writeMetrics exports the run's metrics. Failures are logged only.
func writeMetrics() {
	if metricsWriter == nil || metricsFile == "" {
		return
	}
	if err := metricsWriter.WriteTextfile(metricsFile); err != nil {
		logger.Warn("Failed to write metrics file", "path", metricsFile, "error", err)
		return
	}
	logger.Debug("Metrics written", "path", metricsFile)
}

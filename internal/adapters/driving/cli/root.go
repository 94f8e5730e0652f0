// Package cli provides the nuvie-ingestor command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driving"
	"github.com/nuvie/nuvie-ingestor/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

// GlobalFlags are the persistent flags shared by every command.
// Empty values leave the configured setting untouched.
type GlobalFlags struct {
	ConfigDir   string
	LogLevel    string
	Store       string
	DownloadDir string
	MetricsFile string

	// Workers is the --workers value of the ingest command, if any.
	Workers int

	// Dataset is the dataset the command is about to ingest. Empty for
	// commands that only read the store.
	Dataset string
}

// Apply overrides cfg with the flags that were set.
func (f GlobalFlags) Apply(cfg *domain.Config) error {
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.Store != "" {
		driver := domain.StoreDriver(f.Store)
		if !driver.IsValid() {
			return fmt.Errorf("%w: --store %q: %w", domain.ErrConfig, f.Store, domain.ErrUnsupportedType)
		}
		cfg.Store = driver
	}
	if f.DownloadDir != "" {
		cfg.DownloadDir = f.DownloadDir
	}
	if f.MetricsFile != "" {
		cfg.MetricsFile = f.MetricsFile
	}
	if f.Workers > 0 {
		cfg.Workers = f.Workers
	}
	return nil
}

// MetricsWriter persists the metrics of a run.
type MetricsWriter interface {
	WriteTextfile(path string) error
}

// Services holds everything the commands drive.
type Services struct {
	Ingestor driving.Ingestor
	Patients driving.PatientService

	// Metrics and MetricsFile are optional. Both must be set for a
	// textfile to be written after ingestion.
	Metrics     MetricsWriter
	MetricsFile string

	// Close releases the store and other resources.
	Close func() error
}

// Bootstrap builds the services once flags have been parsed.
type Bootstrap func(ctx context.Context, flags GlobalFlags) (*Services, error)

var (
	bootstrap   Bootstrap
	globalFlags GlobalFlags

	ingestService  driving.Ingestor
	patientService driving.PatientService
	metricsWriter  MetricsWriter
	metricsFile    string
	closeServices  func() error
)

var rootCmd = &cobra.Command{
	Use:   "nuvie-ingestor",
	Short: "Nuvie patient record ingestor",
	Long: `Downloads a patient dataset, parses it into normalised records and
stores them concurrently in batches. Records already stored, matched by SSN,
are skipped, so runs can be repeated safely.

Running without a subcommand is the same as "nuvie-ingestor ingest".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runIngest,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globalFlags.ConfigDir, "config", "", "config directory (default ~/.nuvie)")
	flags.StringVar(&globalFlags.LogLevel, "log-level", "", "log level: DEBUG, INFO, WARNING, ERROR")
	flags.StringVar(&globalFlags.Store, "store", "", "patient store: memory, sqlite or postgres")
	flags.StringVar(&globalFlags.DownloadDir, "download-dir", "", "directory for downloaded datasets")
	flags.StringVar(&globalFlags.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file after ingestion")

	addIngestFlags(rootCmd)
}

// Execute runs the root command. b is called lazily by commands that need
// services, so version and help work without a store.
func Execute(ctx context.Context, b Bootstrap) error {
	bootstrap = b
	rootCmd.SetOut(rootCmd.OutOrStdout())
	defer func() {
		if err := shutdown(); err != nil {
			logger.Warn("Failed to close services", "error", err)
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

// ensureServices wires the services on first use. dataset is passed to
// the bootstrap so an unknown name fails before any store is opened.
func ensureServices(ctx context.Context, dataset string) error {
	if bootstrap == nil || ingestService != nil || patientService != nil {
		return nil
	}

	flags := globalFlags
	flags.Workers = ingestWorkers
	flags.Dataset = dataset
	svc, err := bootstrap(ctx, flags)
	if err != nil {
		return err
	}
	if svc == nil {
		return errors.New("bootstrap returned no services")
	}

	ingestService = svc.Ingestor
	patientService = svc.Patients
	metricsWriter = svc.Metrics
	metricsFile = svc.MetricsFile
	closeServices = svc.Close
	return nil
}

func shutdown() error {
	if closeServices == nil {
		return nil
	}
	closeFn := closeServices
	closeServices = nil
	return closeFn()
}

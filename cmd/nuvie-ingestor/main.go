// Command nuvie-ingestor downloads patient datasets and stores them in
// the configured patient store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/config/file"
	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/csvsource"
	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/fetcher"
	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/metrics/prometheus"
	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/storage/memory"
	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/storage/postgres"
	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/storage/sqlite"
	"github.com/nuvie/nuvie-ingestor/internal/adapters/driving/cli"
	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
	"github.com/nuvie/nuvie-ingestor/internal/core/services"
	"github.com/nuvie/nuvie-ingestor/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, bootstrap)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bootstrap resolves configuration and wires the adapters into the services.
func bootstrap(ctx context.Context, flags cli.GlobalFlags) (*cli.Services, error) {
	configStore, err := file.NewConfigStore(flags.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	cfg, err := services.LoadConfig(configStore, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if err := flags.Apply(&cfg); err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.Debug("Configuration loaded", "path", configStore.Path(), "store", cfg.Store)

	if flags.Dataset != "" {
		if _, err := cfg.Dataset(flags.Dataset); err != nil {
			logger.Error("Unsupported dataset", "dataset", flags.Dataset)
			return nil, err
		}
	}

	store, err := openStore(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	recorder := prometheus.New()
	ingest := services.NewIngestService(
		&cfg,
		fetcher.NewHTTPFetcher(cfg.Fetch),
		csvsource.NewReader(),
		store,
		recorder,
	)

	return &cli.Services{
		Ingestor:    ingest,
		Patients:    services.NewPatientService(store),
		Metrics:     recorder,
		MetricsFile: cfg.MetricsFile,
		Close:       store.Close,
	}, nil
}

// openStore creates the patient store selected by the configuration.
func openStore(ctx context.Context, cfg *domain.Config) (driven.PatientStore, error) {
	switch cfg.Store {
	case domain.StoreDriverMemory:
		logger.Warn("Using in-memory store, patients are discarded on exit")
		return memory.NewPatientStore(), nil

	case domain.StoreDriverSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil

	case domain.StoreDriverPostgres:
		// One connection per worker plus one for reads.
		workers := cfg.Workers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		store, err := postgres.NewStore(ctx, cfg.Postgres.URI(), int32(workers+1))
		if err != nil {
			return nil, fmt.Errorf("open postgres store at %s:%s/%s: %w",
				cfg.Postgres.Server, cfg.Postgres.Port, cfg.Postgres.DB, err)
		}
		return store, nil

	default:
		return nil, errors.Join(domain.ErrConfig, fmt.Errorf("store %q: %w", cfg.Store, domain.ErrUnsupportedType))
	}
}

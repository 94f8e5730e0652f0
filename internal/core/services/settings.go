package services

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
)

// Configuration keys read from the config file.
const (
	KeyWorkers        = "workers"
	KeyLogLevel       = "log_level"
	KeyDownloadDir    = "download_dir"
	KeyStore          = "store"
	KeySQLitePath     = "sqlite.path"
	KeyPostgresServer = "postgres.server"
	KeyPostgresPort   = "postgres.port"
	KeyPostgresDB     = "postgres.db"
	KeyPostgresUser   = "postgres.user"
	KeyPostgresPass   = "postgres.password"
	KeyFetchTimeout   = "fetch.timeout"
	KeyFetchRetries   = "fetch.retries"
	KeyMetricsFile    = "metrics_file"
)

// Dataset tables live under [datasets.<name>].
const (
	datasetsTable     = "datasets"
	datasetKeyURL     = "url"
	datasetKeyArchive = "archive"
	datasetKeyCSV     = "csv"
)

// Environment variables that override the config file.
const (
	EnvWorkers        = "WORKERS"
	EnvLogLevel       = "LOG_LEVEL"
	EnvPostgresServer = "POSTGRES_SERVER"
	EnvPostgresPort   = "POSTGRES_PORT"
	EnvPostgresDB     = "POSTGRES_DB"
	EnvPostgresUser   = "POSTGRES_USER"
	EnvPostgresPass   = "POSTGRES_PASSWORD"
	EnvSyntheaURL     = "SYNTHEA_URL"
	EnvSyntheaZipName = "SYNTHEA_ZIP_NAME"
	EnvStore          = "NUVIE_STORE"
	EnvDownloadDir    = "NUVIE_DOWNLOAD_DIR"
	EnvSQLitePath     = "NUVIE_SQLITE_PATH"
	EnvMetricsFile    = "NUVIE_METRICS_FILE"
)

const (
	defaultLogLevel       = "INFO"
	defaultStoreDriver    = domain.StoreDriverPostgres
	defaultSQLiteDir      = "~/.nuvie/data"
	defaultPostgresServer = "postgres"
	defaultPostgresPort   = "5432"
	defaultPostgresDB     = "nuvie"
	defaultPostgresUser   = "postgres"
)

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// LoadConfig resolves the process configuration from defaults, the config
// store and then the environment. store and lookupEnv may be nil.
// Every problem found is reported, joined, each wrapping domain.ErrConfig.
func LoadConfig(store driven.ConfigStore, lookupEnv LookupEnv) (domain.Config, error) {
	if lookupEnv == nil {
		lookupEnv = func(string) (string, bool) { return "", false }
	}
	r := &configResolver{store: store, env: lookupEnv}

	cfg := domain.Config{
		Workers:     r.fileInt(KeyWorkers),
		LogLevel:    r.str(KeyLogLevel, EnvLogLevel, defaultLogLevel),
		DownloadDir: r.str(KeyDownloadDir, EnvDownloadDir, domain.DefaultDownloadDir),
		Store:       domain.StoreDriver(r.str(KeyStore, EnvStore, string(defaultStoreDriver))),
		SQLitePath:  r.str(KeySQLitePath, EnvSQLitePath, defaultSQLiteDir),
		Postgres: domain.PostgresConfig{
			Server:   r.str(KeyPostgresServer, EnvPostgresServer, defaultPostgresServer),
			Port:     r.str(KeyPostgresPort, EnvPostgresPort, defaultPostgresPort),
			DB:       r.str(KeyPostgresDB, EnvPostgresDB, defaultPostgresDB),
			User:     r.str(KeyPostgresUser, EnvPostgresUser, defaultPostgresUser),
			Password: r.str(KeyPostgresPass, EnvPostgresPass, ""),
		},
		Fetch: domain.FetchConfig{
			Timeout: domain.DefaultFetchTimeout,
			Retries: domain.DefaultFetchRetries,
		},
		MetricsFile: r.str(KeyMetricsFile, EnvMetricsFile, ""),
	}

	if store != nil {
		if d := store.GetDuration(KeyFetchTimeout); d > 0 {
			cfg.Fetch.Timeout = d
		}
		if _, ok := store.Get(KeyFetchRetries); ok {
			cfg.Fetch.Retries = store.GetInt(KeyFetchRetries)
		}
	}

	if v, ok := lookupEnv(EnvWorkers); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			r.fail(fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrConfig, EnvWorkers, v))
		} else {
			cfg.Workers = n
		}
	}

	cfg.Datasets = r.datasets()

	if cfg.Workers < 0 {
		r.fail(fmt.Errorf("%w: workers must not be negative, got %d", domain.ErrConfig, cfg.Workers))
	}
	if !cfg.Store.IsValid() {
		r.fail(fmt.Errorf("%w: store %q: %w", domain.ErrConfig, cfg.Store, domain.ErrUnsupportedType))
	}
	if cfg.Fetch.Retries < 0 {
		r.fail(fmt.Errorf("%w: fetch.retries must not be negative", domain.ErrConfig))
	}

	if err := errors.Join(r.errs...); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

type configResolver struct {
	store driven.ConfigStore
	env   LookupEnv
	errs  []error
}

func (r *configResolver) fail(err error) {
	r.errs = append(r.errs, err)
}

// str returns the environment value, else the file value, else def.
func (r *configResolver) str(key, envKey, def string) string {
	if envKey != "" {
		if v, ok := r.env(envKey); ok && v != "" {
			return v
		}
	}
	if r.store != nil {
		if v := r.store.GetString(key); v != "" {
			return v
		}
	}
	return def
}

func (r *configResolver) fileInt(key string) int {
	if r.store == nil {
		return 0
	}
	return r.store.GetInt(key)
}

// datasets builds the registry: the built-in synthea entry, entries from
// [datasets.<name>] tables, then the SYNTHEA_* environment overrides.
func (r *configResolver) datasets() map[string]domain.Dataset {
	registry := map[string]domain.Dataset{
		domain.DefaultDatasetName: {
			Name:        domain.DefaultDatasetName,
			SourceURL:   domain.DefaultSyntheaURL,
			ArchiveName: domain.DefaultSyntheaArchive,
			CSVName:     domain.DefaultPatientsCSV,
		},
	}

	if r.store != nil {
		for _, name := range r.store.Tables(datasetsTable) {
			prefix := datasetsTable + "." + name + "."
			ds := registry[name]
			ds.Name = name
			if v := r.store.GetString(prefix + datasetKeyURL); v != "" {
				ds.SourceURL = v
			}
			if v := r.store.GetString(prefix + datasetKeyArchive); v != "" {
				ds.ArchiveName = v
			}
			if v := r.store.GetString(prefix + datasetKeyCSV); v != "" {
				ds.CSVName = v
			}
			registry[name] = ds
		}
	}

	synthea := registry[domain.DefaultDatasetName]
	if v, ok := r.env(EnvSyntheaURL); ok && v != "" {
		synthea.SourceURL = v
	}
	if v, ok := r.env(EnvSyntheaZipName); ok && v != "" {
		synthea.ArchiveName = v
	}
	registry[domain.DefaultDatasetName] = synthea

	for name, ds := range registry {
		if ds.SourceURL == "" {
			r.fail(fmt.Errorf("%w: dataset %q has no url", domain.ErrConfig, name))
			continue
		}
		if ds.ArchiveName == "" {
			ds.ArchiveName = archiveNameFromURL(ds.SourceURL)
		}
		if ds.CSVName == "" {
			ds.CSVName = domain.DefaultPatientsCSV
		}
		registry[name] = ds
	}
	return registry
}

// archiveNameFromURL uses the last path segment of the source URL.
func archiveNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return "dataset.zip"
	}
	return path.Base(u.Path)
}

package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

func envOf(vars map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(nil, nil)
	require.NoError(t, err)

	assert.Zero(t, cfg.Workers)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, domain.DefaultDownloadDir, cfg.DownloadDir)
	assert.Equal(t, domain.StoreDriverPostgres, cfg.Store)
	assert.Equal(t, domain.PostgresConfig{Server: "postgres", Port: "5432", DB: "nuvie", User: "postgres"}, cfg.Postgres)
	assert.Equal(t, domain.DefaultFetchTimeout, cfg.Fetch.Timeout)
	assert.Equal(t, domain.DefaultFetchRetries, cfg.Fetch.Retries)
	assert.Empty(t, cfg.MetricsFile)

	ds, err := cfg.Dataset("synthea")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSyntheaURL, ds.SourceURL)
	assert.Equal(t, domain.DefaultSyntheaArchive, ds.ArchiveName)
	assert.Equal(t, "patients.csv", ds.CSVName)
}

func TestLoadConfig_FileValues(t *testing.T) {
	store := newMapConfigStore()
	store.Set(KeyWorkers, int64(6))
	store.Set(KeyLogLevel, "DEBUG")
	store.Set(KeyStore, "sqlite")
	store.Set(KeySQLitePath, "/var/lib/nuvie")
	store.Set(KeyPostgresServer, "db.internal")
	store.Set(KeyFetchTimeout, "90s")
	store.Set(KeyFetchRetries, int64(0))
	store.Set(KeyMetricsFile, "/tmp/nuvie.prom")

	cfg, err := LoadConfig(store, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, domain.StoreDriverSQLite, cfg.Store)
	assert.Equal(t, "/var/lib/nuvie", cfg.SQLitePath)
	assert.Equal(t, "db.internal", cfg.Postgres.Server)
	assert.Equal(t, 90*time.Second, cfg.Fetch.Timeout)
	assert.Zero(t, cfg.Fetch.Retries, "explicit zero retries is kept")
	assert.Equal(t, "/tmp/nuvie.prom", cfg.MetricsFile)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	store := newMapConfigStore()
	store.Set(KeyWorkers, int64(6))
	store.Set(KeyLogLevel, "DEBUG")
	store.Set(KeyPostgresServer, "db.internal")

	cfg, err := LoadConfig(store, envOf(map[string]string{
		EnvWorkers:        " 3 ",
		EnvLogLevel:       "WARNING",
		EnvPostgresServer: "pg",
		EnvPostgresPort:   "6543",
		EnvPostgresDB:     "nuvie",
		EnvPostgresUser:   "ingest",
		EnvPostgresPass:   "s3cret",
		EnvStore:          "memory",
		EnvDownloadDir:    "/data",
	}))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "WARNING", cfg.LogLevel)
	assert.Equal(t, domain.StoreDriverMemory, cfg.Store)
	assert.Equal(t, "/data", cfg.DownloadDir)
	assert.Equal(t, "postgres://ingest:s3cret@pg:6543/nuvie", cfg.Postgres.URI())
}

func TestLoadConfig_EmptyEnvIgnored(t *testing.T) {
	cfg, err := LoadConfig(nil, envOf(map[string]string{EnvWorkers: "", EnvLogLevel: ""}))
	require.NoError(t, err)

	assert.Zero(t, cfg.Workers)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestLoadConfig_SyntheaEnv(t *testing.T) {
	cfg, err := LoadConfig(nil, envOf(map[string]string{
		EnvSyntheaURL:     "https://mirror.example/synthea.zip",
		EnvSyntheaZipName: "mirror.zip",
	}))
	require.NoError(t, err)

	ds, err := cfg.Dataset("synthea")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example/synthea.zip", ds.SourceURL)
	assert.Equal(t, "mirror.zip", ds.ArchiveName)
}

func TestLoadConfig_DatasetTables(t *testing.T) {
	store := newMapConfigStore()
	store.Set("datasets.covid.url", "https://example.org/data/covid19.zip")
	store.Set("datasets.synthea.csv", "people.csv")

	cfg, err := LoadConfig(store, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"covid", "synthea"}, cfg.DatasetNames())
	covid, err := cfg.Dataset("covid")
	require.NoError(t, err)
	assert.Equal(t, "covid", covid.Name)
	assert.Equal(t, "covid19.zip", covid.ArchiveName, "derived from url")
	assert.Equal(t, "patients.csv", covid.CSVName)

	synthea, err := cfg.Dataset("synthea")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSyntheaURL, synthea.SourceURL, "partial table keeps defaults")
	assert.Equal(t, "people.csv", synthea.CSVName)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		store func() *mapConfigStore
		env   map[string]string
	}{
		{
			name: "non-integer WORKERS",
			env:  map[string]string{EnvWorkers: "many"},
		},
		{
			name: "negative WORKERS",
			env:  map[string]string{EnvWorkers: "-2"},
		},
		{
			name: "unknown store",
			env:  map[string]string{EnvStore: "mongo"},
		},
		{
			name: "negative retries",
			store: func() *mapConfigStore {
				s := newMapConfigStore()
				s.Set(KeyFetchRetries, -1)
				return s
			},
		},
		{
			name: "dataset without url",
			store: func() *mapConfigStore {
				s := newMapConfigStore()
				s.Set("datasets.covid.csv", "patients.csv")
				return s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr error
			if tt.store != nil {
				_, cfgErr = LoadConfig(tt.store(), envOf(tt.env))
			} else {
				_, cfgErr = LoadConfig(nil, envOf(tt.env))
			}

			assert.ErrorIs(t, cfgErr, domain.ErrConfig)
		})
	}
}

func TestLoadConfig_ReportsAllProblems(t *testing.T) {
	_, err := LoadConfig(nil, envOf(map[string]string{EnvWorkers: "many", EnvStore: "mongo"}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKERS")
	assert.Contains(t, err.Error(), "mongo")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestArchiveNameFromURL(t *testing.T) {
	assert.Equal(t, "a.zip", archiveNameFromURL("https://x.org/files/a.zip?dl=1"))
	assert.Equal(t, "dataset.zip", archiveNameFromURL("https://x.org/"))
	assert.Equal(t, "dataset.zip", archiveNameFromURL("https://x.org"))
}

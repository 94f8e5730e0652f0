package domain

import (
	"fmt"
	"net/url"
	"sort"
	"time"
)

// StoreDriver selects the Persistence Gateway implementation.
type StoreDriver string

// Available store drivers.
const (
	// StoreDriverMemory keeps patients in process memory. Useful for dry runs.
	StoreDriverMemory StoreDriver = "memory"

	// StoreDriverSQLite persists patients to a local SQLite file.
	StoreDriverSQLite StoreDriver = "sqlite"

	// StoreDriverPostgres persists patients to PostgreSQL.
	StoreDriverPostgres StoreDriver = "postgres"
)

// IsValid returns true if the driver is recognised.
func (d StoreDriver) IsValid() bool {
	switch d {
	case StoreDriverMemory, StoreDriverSQLite, StoreDriverPostgres:
		return true
	default:
		return false
	}
}

// Default dataset values.
const (
	DefaultDatasetName    = "synthea"
	DefaultSyntheaURL     = "https://mitre.box.com/shared/static/aw9po06ypfb9hrau4jamtvtz0e5ziucz.zip"
	DefaultSyntheaArchive = "synthea_sample_data_csv_nov2021.zip"
	DefaultPatientsCSV    = "patients.csv"
	DefaultDownloadDir    = "~downloads"
	DefaultFetchTimeout   = 300 * time.Second
	DefaultFetchRetries   = 2
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Server   string
	Port     string
	DB       string
	User     string
	Password string
}

// URI returns the connection string understood by pgx.
func (c PostgresConfig) URI() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Server + ":" + c.Port,
		Path:   "/" + c.DB,
	}
	return u.String()
}

// FetchConfig controls dataset downloads.
type FetchConfig struct {
	// Timeout bounds a single download attempt.
	Timeout time.Duration

	// Retries is the number of extra attempts after a transient failure.
	Retries int
}

// Config is the process configuration, resolved once at startup and
// passed into component constructors.
type Config struct {
	// Workers is the default batch concurrency.
	Workers int

	LogLevel string

	// DownloadDir is where archives are fetched and extracted.
	DownloadDir string

	Store StoreDriver

	// SQLitePath is the database directory for the SQLite driver.
	SQLitePath string

	Postgres PostgresConfig

	Fetch FetchConfig

	// MetricsFile, when set, receives a Prometheus textfile after each run.
	MetricsFile string

	// Datasets is the registry keyed by dataset name.
	Datasets map[string]Dataset
}

// Dataset resolves a registry entry by name.
func (c *Config) Dataset(name string) (Dataset, error) {
	ds, ok := c.Datasets[name]
	if !ok {
		return Dataset{}, fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}
	return ds, nil
}

// DatasetNames returns the registered dataset names in sorted order.
func (c *Config) DatasetNames() []string {
	names := make([]string, 0, len(c.Datasets))
	for name := range c.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

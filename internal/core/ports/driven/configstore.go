package driven

import "time"

// ConfigStore provides read access to file-based configuration.
// Nested tables are addressed with dot-notation keys, e.g. "postgres.port".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString retrieves a string configuration value.
	// Returns empty string if key doesn't exist or isn't a string.
	GetString(key string) string

	// GetInt retrieves an integer configuration value.
	// Returns 0 if key doesn't exist or isn't an integer.
	GetInt(key string) int

	// GetDuration retrieves a duration written either as a Go duration
	// string ("90s") or as integer seconds.
	// Returns 0 if key doesn't exist or can't be converted.
	GetDuration(key string) time.Duration

	// Tables returns the names of the sub-tables directly under prefix,
	// sorted. For [datasets.synthea] and [datasets.covid], Tables("datasets")
	// returns ["covid", "synthea"].
	Tables(prefix string) []string

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}

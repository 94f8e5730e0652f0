package domain

import "time"

// RawRow is one CSV line keyed by header name.
// Rows shorter than the header lack the trailing keys.
type RawRow map[string]string

// Dataset is a registry entry describing a downloadable dataset.
type Dataset struct {
	// Name is the registry key (e.g. "synthea").
	Name string

	// SourceURL is where the archive is downloaded from.
	SourceURL string

	// ArchiveName is the local filename of the downloaded archive.
	ArchiveName string

	// CSVName is the patients file expected after extraction.
	CSVName string
}

// IngestOptions holds per-run options supplied by the caller.
type IngestOptions struct {
	// Workers is the number of concurrent batch tasks. Zero or less means NumCPU.
	Workers int

	// SkipDownload processes an already-extracted file without fetching.
	SkipDownload bool
}

// IngestStats counts persistence outcomes. Used for a single batch and
// for the run total.
type IngestStats struct {
	Created int
	Skipped int
	Errors  int
}

// Add accumulates other into s.
func (s *IngestStats) Add(other IngestStats) {
	s.Created += other.Created
	s.Skipped += other.Skipped
	s.Errors += other.Errors
}

// Total returns the number of records accounted for.
func (s IngestStats) Total() int {
	return s.Created + s.Skipped + s.Errors
}

// SuccessRate returns created as a percentage of total input records.
func (s IngestStats) SuccessRate(total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(s.Created) / float64(total) * 100
}

// IngestReport summarises a completed ingestion run.
type IngestReport struct {
	Dataset string

	// TotalRows is the number of data rows read from the CSV.
	TotalRows int

	// ValidRecords is the number of rows that parsed successfully.
	ValidRecords int

	// ParseErrors is the number of rows dropped by the parser.
	ParseErrors int

	BatchCount int
	BatchSize  int
	Workers    int

	Stats IngestStats

	Duration time.Duration
}

// SuccessRate returns created as a percentage of valid records.
func (r *IngestReport) SuccessRate() float64 {
	return r.Stats.SuccessRate(r.ValidRecords)
}

// Package domain defines the core business entities for the ingestor.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - Patient: A validated, normalised patient record
//   - RawRow: One header-mapped CSV line before parsing
//   - Dataset: A registry entry for a downloadable dataset
//   - IngestStats / IngestReport: Outcome counts for a run
//   - Config: Process configuration resolved at startup
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library, value-type libraries (uuid, decimal)
//   - Cannot Import: Any internal/ package
package domain

// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion pipeline lives here: ParseRow normalises CSV rows,
// Coordinator persists records in concurrent batches, and IngestService
// drives fetch, parse and persist for a dataset.
package services

// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - PatientStore / PatientSession: Persistence Gateway (memory, SQLite, PostgreSQL)
//   - RowSource: Streams CSV rows
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - DatasetFetcher: Only needed when downloads are not skipped.
//   - MetricsRecorder: Without it, no metrics are collected.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven

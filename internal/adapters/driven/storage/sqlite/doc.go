// Package sqlite provides a SQLite-based implementation of driven.PatientStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.nuvie/data/patients.db
//
// # Thread Safety
//
// Each session holds its own connection. Concurrent writers are serialised by
// SQLite in WAL mode with a busy timeout. The unique index on ssn rejects
// duplicate inserts that race past the existence check.
package sqlite

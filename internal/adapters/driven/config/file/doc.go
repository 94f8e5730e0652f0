// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: read-only TOML configuration, e.g.
//
//	workers = 8
//	store = "postgres"
//
//	[postgres]
//	server = "db.internal"
//	port = "5432"
//
//	[datasets.synthea]
//	url = "https://example.org/synthea.zip"
//	archive = "synthea.zip"
//	csv = "patients.csv"
package file

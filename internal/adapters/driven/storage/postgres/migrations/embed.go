// Package migrations embeds the patients schema for the PostgreSQL store.
package migrations

import "embed"

// FS holds the versioned NNN_name.up.sql / .down.sql pairs.
//
//go:embed *.sql
var FS embed.FS

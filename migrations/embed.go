// Package migrations embeds the history database schema into the binary.
//
// The agent runs on read-only root filesystems, so the SQL files are
// compiled into the executable rather than read from disk.
package migrations

import "embed"

// FS holds every *.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS

package database

import "embed"

// EmbeddedMigrations holds migrations/*.sql compiled into the binary, so a
// deployed server needs no SQL files next to it.
// Use Open, or fs.Sub(EmbeddedMigrations, "migrations").
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS

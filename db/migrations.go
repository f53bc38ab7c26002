// Package db embeds the SQL migrations applied by the store.
package db

import "embed"

// Migrations holds db/migrations/*.sql. Only *.up.sql files are applied automatically.
//
//go:embed migrations/*.sql
var Migrations embed.FS

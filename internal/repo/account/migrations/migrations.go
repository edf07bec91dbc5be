// Package migrations embeds the PostgreSQL schema migrations for accounts.
package migrations

import "embed"

// Migrations holds the goose SQL migrations.
//
//go:embed *.sql
var Migrations embed.FS

// Package postgres embeds the goose migrations for the PostgreSQL engine.
package postgres

import "embed"

//go:embed *.sql
var Migrations embed.FS

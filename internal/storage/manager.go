// Package storage wires the repositories to a concrete database engine.
// The engine is selected from the DSN: postgres:// URLs open PostgreSQL,
// anything else is treated as an SQLite file path.
package storage

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/workshop-watcher/internal/repositories/mods"
	"github.com/dmitrijs2005/workshop-watcher/internal/repositories/steamusers"
)

// Repositories bundles transaction-scoped repository handles for InTx.
type Repositories struct {
	Mods       mods.Repository
	SteamUsers steamusers.Repository
}

// RepositoryManager owns the database connection and hands out repositories.
type RepositoryManager interface {
	// Mods returns the snapshot repository bound to the connection.
	Mods() mods.Repository

	// SteamUsers returns the identity-cache repository bound to the connection.
	SteamUsers() steamusers.Repository

	// InTx runs fn inside a single transaction; the watcher commits each
	// cycle's state through this so a crash mid-commit leaves the previous
	// cycle's records intact.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error

	// RunMigrations brings the schema up to date.
	RunMigrations(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// NewRepositoryManager picks the engine from the DSN.
func NewRepositoryManager(dsn string) (RepositoryManager, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresRepositoryManager(dsn)
	}
	return NewSQLiteRepositoryManager(dsn)
}

// Package mods persists workshop item snapshots.
package mods

import (
	"context"

	"github.com/dmitrijs2005/workshop-watcher/internal/models"
)

// Repository describes the persistence operations for mod snapshots.
// Implementations are backed by SQLite or PostgreSQL.
type Repository interface {
	// Upsert inserts a new snapshot or fully replaces an existing one by ID.
	// The write is a single atomic statement; a crash leaves either the old
	// or the new record, never a partial mix of fields.
	Upsert(ctx context.Context, mod *models.Mod) error

	// GetByID returns the snapshot for a workshop item, or
	// common.ErrorNotFound when the item has never been seen.
	GetByID(ctx context.Context, id uint64) (*models.Mod, error)
}

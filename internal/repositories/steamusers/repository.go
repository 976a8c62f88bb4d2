// Package steamusers caches resolved Steam author identities.
package steamusers

import (
	"context"

	"github.com/dmitrijs2005/workshop-watcher/internal/models"
)

// Repository describes the persistence operations for the identity cache.
type Repository interface {
	// Upsert inserts or fully replaces a cache entry by Steam ID.
	Upsert(ctx context.Context, user *models.SteamUser) error

	// GetByID returns the cached entry for a Steam ID, or
	// common.ErrorNotFound when the ID was never resolved.
	GetByID(ctx context.Context, steamID string) (*models.SteamUser, error)

	// MarkFetchFailed records a failed resolution attempt at the given time
	// so the ID is not re-queried until the cache entry goes stale. Existing
	// display fields are preserved.
	MarkFetchFailed(ctx context.Context, steamID string, ts int64) error
}

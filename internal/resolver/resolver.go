// Package resolver maps workshop author IDs to Steam profiles using a
// persistent cache in front of the player summaries API. Resolution is best
// effort and never fails a cycle: on any upstream or cache problem a stale
// entry or an unresolved placeholder is served instead.
package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/workshop-watcher/internal/common"
	"github.com/dmitrijs2005/workshop-watcher/internal/logging"
	"github.com/dmitrijs2005/workshop-watcher/internal/models"
	"github.com/dmitrijs2005/workshop-watcher/internal/repositories/steamusers"
)

// TTL is how long a cached identity is served without re-querying, applied
// equally to successful and failed resolution attempts.
const TTL = 7 * 24 * time.Hour

// UserFetcher queries Steam for player profiles.
type UserFetcher interface {
	FetchPlayerSummaries(ctx context.Context, apiKey string, steamIDs []string) map[string]*models.SteamUser
}

// Resolver resolves author identities through the cache.
type Resolver struct {
	repo    steamusers.Repository
	fetcher UserFetcher
	apiKey  string
	log     logging.Logger
	now     func() time.Time
}

func New(repo steamusers.Repository, fetcher UserFetcher, apiKey string, log logging.Logger) *Resolver {
	return &Resolver{
		repo:    repo,
		fetcher: fetcher,
		apiKey:  apiKey,
		log:     log,
		now:     time.Now,
	}
}

// WithNow overrides the clock. Test hook.
func (r *Resolver) WithNow(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve returns an identity for every requested author ID. Fresh cache
// entries are served directly; the rest are fetched in one batched pass.
// IDs that still cannot be resolved get their stale entry if one exists,
// otherwise an unresolved placeholder, and are marked so they are not
// re-queried until the TTL elapses again.
//
// Without an API key there is nothing to resolve with: every ID gets the
// unresolved placeholder, with no cache reads and no network calls.
func (r *Resolver) Resolve(ctx context.Context, authorIDs []string) map[string]*models.SteamUser {
	resolved := make(map[string]*models.SteamUser, len(authorIDs))
	if r.apiKey == "" {
		for _, id := range authorIDs {
			if id == "" {
				continue
			}
			resolved[id] = &models.SteamUser{SteamID: id}
		}
		return resolved
	}

	cached := make(map[string]*models.SteamUser)
	seen := make(map[string]struct{}, len(authorIDs))

	var stale []string
	for _, id := range authorIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		entry, err := r.repo.GetByID(ctx, id)
		switch {
		case err == nil && r.fresh(entry):
			resolved[id] = entry
		case err == nil:
			cached[id] = entry
			stale = append(stale, id)
		case errors.Is(err, common.ErrorNotFound):
			stale = append(stale, id)
		default:
			// cache read failed, degrade to a fetch attempt
			r.log.Warn(ctx, "identity cache read failed", "steam_id", id, "error", err)
			stale = append(stale, id)
		}
	}

	if len(stale) == 0 {
		return resolved
	}

	fetched := r.fetcher.FetchPlayerSummaries(ctx, r.apiKey, stale)
	now := r.now().Unix()

	for _, id := range stale {
		user, ok := fetched[id]
		if !ok {
			if err := r.repo.MarkFetchFailed(ctx, id, now); err != nil {
				r.log.Warn(ctx, "identity cache write failed", "steam_id", id, "error", err)
			}
			resolved[id] = r.degraded(id, cached[id])
			continue
		}
		if err := r.repo.Upsert(ctx, user); err != nil {
			r.log.Warn(ctx, "identity cache write failed", "steam_id", id, "error", err)
		}
		resolved[id] = user
	}

	return resolved
}

// fresh applies the TTL to successes and failures alike, so an author whose
// profile keeps failing is not re-queried every cycle.
func (r *Resolver) fresh(u *models.SteamUser) bool {
	age := r.now().Unix() - u.LastFetched
	return age < int64(TTL.Seconds())
}

// degraded prefers a stale cached identity over an unresolved placeholder.
func (r *Resolver) degraded(id string, cached *models.SteamUser) *models.SteamUser {
	if cached != nil {
		return cached
	}
	return &models.SteamUser{SteamID: id}
}

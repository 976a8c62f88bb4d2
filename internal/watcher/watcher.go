// Package watcher runs the poll cycle: fetch the catalog, diff against
// persisted snapshots, resolve authors, notify, and commit. Announcement
// state only advances for events Discord acknowledged, so a failed delivery
// is retried on the next cycle rather than lost.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workshop-watcher/internal/common"
	"github.com/dmitrijs2005/workshop-watcher/internal/logging"
	"github.com/dmitrijs2005/workshop-watcher/internal/models"
	"github.com/dmitrijs2005/workshop-watcher/internal/steam"
	"github.com/dmitrijs2005/workshop-watcher/internal/storage"
)

// Catalog fetches current workshop item details.
type Catalog interface {
	FetchPublishedFileDetails(ctx context.Context, ids []uint64) map[uint64]steam.Result
}

// IdentityResolver maps author IDs to Steam profiles.
type IdentityResolver interface {
	Resolve(ctx context.Context, authorIDs []string) map[string]*models.SteamUser
}

// Notifier delivers events and reports which ones were acknowledged.
type Notifier interface {
	Deliver(ctx context.Context, events []*models.Event) []*models.Event
}

// CycleStats summarizes one poll cycle for logging.
type CycleStats struct {
	Tracked   int
	New       int
	Updated   int
	Delivered int
	NotFound  int
	Malformed int
	Transient int
}

// Watcher owns one watch list and its dependencies.
type Watcher struct {
	items             []models.TrackedItem
	notifyOnFirstSeen bool
	store             storage.RepositoryManager
	catalog           Catalog
	resolver          IdentityResolver
	notifier          Notifier
	log               logging.Logger
}

func New(
	items []models.TrackedItem,
	notifyOnFirstSeen bool,
	store storage.RepositoryManager,
	catalog Catalog,
	resolver IdentityResolver,
	notifier Notifier,
	log logging.Logger,
) *Watcher {
	return &Watcher{
		items:             items,
		notifyOnFirstSeen: notifyOnFirstSeen,
		store:             store,
		catalog:           catalog,
		resolver:          resolver,
		notifier:          notifier,
		log:               log,
	}
}

// pending is an item that survived fetch and diff and will be persisted.
type pending struct {
	mod   *models.Mod
	event *models.Event // nil when nothing changed
}

// RunCycle executes one poll cycle. Only storage failures abort it; upstream
// problems degrade to per-item skips. All snapshot writes happen in a single
// transaction at the end, after delivery results are known.
func (w *Watcher) RunCycle(ctx context.Context) (CycleStats, error) {
	stats := CycleStats{Tracked: len(w.items)}
	if len(w.items) == 0 {
		return stats, nil
	}

	aliases := make(map[uint64]string, len(w.items))
	ids := make([]uint64, 0, len(w.items))
	for _, item := range w.items {
		ids = append(ids, item.ID)
		aliases[item.ID] = item.Name
	}

	results := w.catalog.FetchPublishedFileDetails(ctx, ids)

	var toPersist []*pending
	var events []*models.Event
	for _, id := range ids {
		res := results[id]
		switch res.Outcome {
		case steam.OutcomeOK:
			p, err := w.diff(ctx, res.Mod, aliases[id])
			if err != nil {
				return stats, fmt.Errorf("loading snapshot %d: %w", id, err)
			}
			toPersist = append(toPersist, p)
			if p.event != nil {
				events = append(events, p.event)
			}
		case steam.OutcomeNotFound:
			stats.NotFound++
			w.log.Warn(ctx, "workshop item not found upstream", "id", id)
		case steam.OutcomeMalformed:
			stats.Malformed++
		case steam.OutcomeTransient:
			stats.Transient++
		}
	}

	delivered := w.notify(ctx, events, &stats)

	// a delivered event advances the announcement watermark; everything
	// else keeps its previous one
	for _, ev := range delivered {
		ev.Mod.LastNotified = ev.Mod.TimeUpdated
	}

	if err := w.commit(ctx, toPersist); err != nil {
		return stats, fmt.Errorf("committing snapshots: %w", err)
	}

	w.log.Info(ctx, "cycle complete",
		"tracked", stats.Tracked,
		"new", stats.New,
		"updated", stats.Updated,
		"delivered", stats.Delivered,
		"not_found", stats.NotFound,
		"malformed", stats.Malformed,
		"transient", stats.Transient,
	)
	return stats, nil
}

// diff compares a fetched mod against its stored snapshot. The fetched mod
// inherits the snapshot's announcement watermark; detection is based purely
// on that watermark, so changes missed by a failed delivery resurface.
func (w *Watcher) diff(ctx context.Context, fetched *models.Mod, alias string) (*pending, error) {
	prev, err := w.store.Mods().GetByID(ctx, fetched.ID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	p := &pending{mod: fetched}
	if prev != nil {
		fetched.LastNotified = prev.LastNotified
	}

	switch {
	case prev == nil || prev.LastNotified == 0:
		p.event = &models.Event{Kind: models.EventNew, Mod: fetched, Alias: alias}
	case fetched.TimeUpdated > prev.LastNotified:
		p.event = &models.Event{
			Kind:        models.EventUpdated,
			Mod:         fetched,
			Alias:       alias,
			PrevUpdated: prev.LastNotified,
		}
	}
	return p, nil
}

// notify resolves authors and delivers the events that should produce a
// message. With first-seen notifications off, new items are baselined
// silently: they count as delivered so their watermark advances.
func (w *Watcher) notify(ctx context.Context, events []*models.Event, stats *CycleStats) []*models.Event {
	var announce, silent []*models.Event
	for _, ev := range events {
		switch ev.Kind {
		case models.EventNew:
			stats.New++
			if w.notifyOnFirstSeen {
				announce = append(announce, ev)
			} else {
				silent = append(silent, ev)
			}
		case models.EventUpdated:
			stats.Updated++
			announce = append(announce, ev)
		}
	}

	if len(announce) == 0 {
		return silent
	}

	authorIDs := make([]string, 0, len(announce))
	for _, ev := range announce {
		authorIDs = append(authorIDs, ev.Mod.AuthorID)
	}
	authors := w.resolver.Resolve(ctx, authorIDs)
	for _, ev := range announce {
		ev.Author = authors[ev.Mod.AuthorID]
		if ev.Author == nil {
			ev.Author = &models.SteamUser{SteamID: ev.Mod.AuthorID}
		}
	}

	delivered := w.notifier.Deliver(ctx, announce)
	stats.Delivered = len(delivered)
	return append(delivered, silent...)
}

// commit persists refreshed snapshots in one transaction.
func (w *Watcher) commit(ctx context.Context, toPersist []*pending) error {
	if len(toPersist) == 0 {
		return nil
	}
	return w.store.InTx(ctx, func(ctx context.Context, repos storage.Repositories) error {
		for _, p := range toPersist {
			if err := repos.Mods.Upsert(ctx, p.mod); err != nil {
				return err
			}
		}
		return nil
	})
}

// Run polls forever at the given interval, or runs a single cycle when the
// interval is zero. Cycle errors are logged and the loop continues; only
// context cancellation stops it.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) error {
	if _, err := w.RunCycle(ctx); err != nil {
		if interval == 0 {
			return err
		}
		w.log.Error(ctx, "cycle failed", "error", err)
	}
	if interval == 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunCycle(ctx); err != nil {
				w.log.Error(ctx, "cycle failed", "error", err)
			}
		}
	}
}

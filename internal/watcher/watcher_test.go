package watcher

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/workshop-watcher/internal/logging"
	"github.com/dmitrijs2005/workshop-watcher/internal/models"
	"github.com/dmitrijs2005/workshop-watcher/internal/steam"
	"github.com/dmitrijs2005/workshop-watcher/internal/storage"
)

type fakeCatalog struct {
	results map[uint64]steam.Result
}

func (f *fakeCatalog) FetchPublishedFileDetails(_ context.Context, ids []uint64) map[uint64]steam.Result {
	out := make(map[uint64]steam.Result, len(ids))
	for _, id := range ids {
		if res, ok := f.results[id]; ok {
			out[id] = res
		} else {
			out[id] = steam.Result{Outcome: steam.OutcomeNotFound}
		}
	}
	return out
}

type fakeResolver struct {
	calls int
}

func (f *fakeResolver) Resolve(_ context.Context, ids []string) map[string]*models.SteamUser {
	f.calls++
	out := make(map[string]*models.SteamUser, len(ids))
	for _, id := range ids {
		out[id] = &models.SteamUser{SteamID: id, PersonaName: "author-" + id}
	}
	return out
}

type fakeNotifier struct {
	received [][]*models.Event
	failIDs  map[uint64]bool
}

func (f *fakeNotifier) Deliver(_ context.Context, events []*models.Event) []*models.Event {
	f.received = append(f.received, events)
	var delivered []*models.Event
	for _, ev := range events {
		if !f.failIDs[ev.Mod.ID] {
			delivered = append(delivered, ev)
		}
	}
	return delivered
}

func (f *fakeNotifier) total() int {
	n := 0
	for _, batch := range f.received {
		n += len(batch)
	}
	return n
}

type harness struct {
	store    storage.RepositoryManager
	catalog  *fakeCatalog
	resolver *fakeResolver
	notifier *fakeNotifier
	watcher  *Watcher
}

func newHarness(t *testing.T, items []models.TrackedItem, notifyOnFirstSeen bool) *harness {
	t.Helper()

	store, err := storage.NewSQLiteRepositoryManager(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		store:    store,
		catalog:  &fakeCatalog{results: map[uint64]steam.Result{}},
		resolver: &fakeResolver{},
		notifier: &fakeNotifier{failIDs: map[uint64]bool{}},
	}
	h.watcher = New(items, notifyOnFirstSeen, store, h.catalog, h.resolver, h.notifier, logging.NewDefault(slog.LevelError))
	return h
}

func okResult(id uint64, timeUpdated int64) steam.Result {
	return steam.Result{Outcome: steam.OutcomeOK, Mod: &models.Mod{
		ID:          id,
		Title:       "Mod",
		AuthorID:    "7656",
		TimeUpdated: timeUpdated,
		TimeCreated: 1600000000,
	}}
}

func item(id uint64, name string) models.TrackedItem {
	return models.TrackedItem{ID: id, Name: name}
}

func TestRunCycle_FirstSightNotifiesAndCommits(t *testing.T) {
	h := newHarness(t, []models.TrackedItem{item(1, "alias")}, true)
	h.catalog.results[1] = okResult(1, 1690000000)

	stats, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.New)
	assert.Equal(t, 1, stats.Delivered)
	require.Equal(t, 1, h.notifier.total())
	ev := h.notifier.received[0][0]
	assert.Equal(t, models.EventNew, ev.Kind)
	assert.Equal(t, "alias", ev.Alias)
	assert.Equal(t, "author-7656", ev.Author.PersonaName)

	stored, err := h.store.Mods().GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1690000000), stored.LastNotified)
}

func TestRunCycle_NoChangeStillRefreshesSnapshot(t *testing.T) {
	h := newHarness(t, []models.TrackedItem{item(1, "")}, true)
	first := okResult(1, 1690000000)
	h.catalog.results[1] = first

	_, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	// same update stamp, new stats
	second := okResult(1, 1690000000)
	second.Mod.Subscriptions = 500
	h.catalog.results[1] = second

	stats, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.New)
	assert.Zero(t, stats.Updated)
	assert.Equal(t, 1, h.notifier.total())

	stored, err := h.store.Mods().GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), stored.Subscriptions)
	assert.Equal(t, int64(1690000000), stored.LastNotified)
}

func TestRunCycle_UpdateDetectedAgainstWatermark(t *testing.T) {
	h := newHarness(t, []models.TrackedItem{item(1, "")}, true)
	h.catalog.results[1] = okResult(1, 1690000000)

	_, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	h.catalog.results[1] = okResult(1, 1695000000)

	stats, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Updated)
	ev := h.notifier.received[1][0]
	assert.Equal(t, models.EventUpdated, ev.Kind)
	assert.Equal(t, int64(1690000000), ev.PrevUpdated)

	stored, err := h.store.Mods().GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1695000000), stored.LastNotified)
}

func TestRunCycle_FailedDeliveryKeepsWatermarkAndRedetects(t *testing.T) {
	h := newHarness(t, []models.TrackedItem{item(1, "")}, true)
	h.catalog.results[1] = okResult(1, 1690000000)
	h.catalog.results[1].Mod.Subscriptions = 100
	h.notifier.failIDs[1] = true

	_, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	// descriptive fields committed, watermark not advanced
	stored, err := h.store.Mods().GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.Subscriptions)
	assert.Zero(t, stored.LastNotified)

	// next cycle re-detects as new and delivers
	h.notifier.failIDs[1] = false
	h.catalog.results[1] = okResult(1, 1690000000)

	stats, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.New)
	assert.Equal(t, 1, stats.Delivered)

	stored, err = h.store.Mods().GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1690000000), stored.LastNotified)
}

func TestRunCycle_FailedUpdateDeliveryResurfacesNextCycle(t *testing.T) {
	h := newHarness(t, []models.TrackedItem{item(1, "")}, true)
	h.catalog.results[1] = okResult(1, 1690000000)

	_, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	h.catalog.results[1] = okResult(1, 1695000000)
	h.notifier.failIDs[1] = true

	_, err = h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	h.notifier.failIDs[1] = false
	h.catalog.results[1] = okResult(1, 1695000000)

	stats, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Delivered)
	ev := h.notifier.received[2][0]
	assert.Equal(t, int64(1690000000), ev.PrevUpdated)
}

func TestRunCycle_TransientItemLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, []models.TrackedItem{item(1, ""), item(2, "")}, true)
	h.catalog.results[1] = okResult(1, 1690000000)
	h.catalog.results[2] = okResult(2, 1690000000)

	_, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	h.catalog.results[1] = steam.Result{Outcome: steam.OutcomeTransient}
	h.catalog.results[2] = okResult(2, 1695000000)

	stats, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Transient)
	assert.Equal(t, 1, stats.Updated)

	stored, err := h.store.Mods().GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1690000000), stored.LastNotified)
}

func TestRunCycle_NotFoundSkipsQuietly(t *testing.T) {
	h := newHarness(t, []models.TrackedItem{item(1, "")}, true)

	stats, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.NotFound)
	assert.Zero(t, h.notifier.total())
	assert.Zero(t, h.resolver.calls)
}

func TestRunCycle_FirstSeenBaselinedSilentlyWhenDisabled(t *testing.T) {
	h := newHarness(t, []models.TrackedItem{item(1, "")}, false)
	h.catalog.results[1] = okResult(1, 1690000000)

	stats, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.New)
	assert.Zero(t, stats.Delivered)
	assert.Zero(t, h.notifier.total())

	// baseline committed so the next cycle is quiet
	stored, err := h.store.Mods().GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1690000000), stored.LastNotified)

	stats, err = h.watcher.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.New)

	// real updates are still announced
	h.catalog.results[1] = okResult(1, 1695000000)
	stats, err = h.watcher.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Delivered)
}

func TestRunCycle_EmptyWatchListIsANoOp(t *testing.T) {
	h := newHarness(t, nil, true)

	stats, err := h.watcher.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.Tracked)
	assert.Zero(t, h.notifier.total())
}

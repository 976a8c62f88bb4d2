// Package models defines the records the watcher tracks and persists:
// workshop mod snapshots, cached Steam user identities, and the transient
// notification events produced by one polling cycle.
package models

// TrackedItem is one workshop item from the configuration. Name is an
// optional human alias shown next to the workshop title in notifications.
type TrackedItem struct {
	ID   uint64
	Name string
}

// Mod is the persisted snapshot of a workshop item, keyed by its published
// file ID. All timestamps are Unix seconds, as returned by the Steam API.
//
// TimeUpdated is the latest update time reported by Steam; LastNotified is
// the update time the watcher last successfully announced. The two differ
// while a notification for an update is still pending delivery.
type Mod struct {
	ID            uint64
	Title         string
	AuthorID      string
	FileSize      int64
	TimeCreated   int64
	TimeUpdated   int64
	LastNotified  int64
	LastChecked   int64
	Description   string
	Views         int64
	Subscriptions int64
	Favorites     int64
	Tags          string
	Visibility    int64
	PreviewURL    string
}

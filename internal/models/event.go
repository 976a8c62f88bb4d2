package models

// EventKind distinguishes a freshly tracked mod from one that changed.
type EventKind string

const (
	EventNew     EventKind = "new"
	EventUpdated EventKind = "updated"
)

// Event is one pending notification: a mod that is either new to the
// watcher or has a newer update time than the one last announced.
// Events live only within a single polling cycle and are never persisted.
type Event struct {
	Kind EventKind
	Mod  *Mod
	// Alias is the configured display name for the tracked item, if any.
	Alias string
	// Author is the resolved identity of Mod.AuthorID. It may be an
	// unresolved placeholder (empty PersonaName) when resolution failed.
	Author *SteamUser
	// PrevUpdated is the previously announced update time, shown in
	// "updated" notifications. Zero for EventNew.
	PrevUpdated int64
}

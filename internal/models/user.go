package models

// SteamUser is a cached identity lookup for a workshop author, keyed by the
// 64-bit Steam ID (kept as a string, the way the API reports it).
//
// LastFetched is the Unix time of the last resolution attempt. FetchFailed
// marks an attempt that returned nothing, so the ID is not re-queried until
// the cache entry expires.
type SteamUser struct {
	SteamID     string
	PersonaName string
	RealName    string
	ProfileURL  string
	AvatarURL   string
	LastFetched int64
	FetchFailed bool
}

// Resolved reports whether the entry carries an actual display name, as
// opposed to being a placeholder for an unresolved ID.
func (u *SteamUser) Resolved() bool {
	return u != nil && u.PersonaName != ""
}

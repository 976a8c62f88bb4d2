// Package config handles configuration for the watcher: defaults, JSON
// overlay, environment overlay, and command-line flags, in that order.
package config

import (
	"time"

	"github.com/dmitrijs2005/workshop-watcher/internal/models"
)

// Config holds runtime settings for the watcher.
//
// Fields:
//   - DatabaseDSN: storage location. A plain path opens an SQLite file;
//     a postgres:// URL selects the Postgres engine.
//   - DiscordWebhookURL: webhook to deliver notifications to.
//   - SteamAPIKey: Web API key for GetPlayerSummaries. Optional; without
//     it author identities stay unresolved.
//   - PollInterval: delay between polling cycles. Zero runs one cycle
//     and exits.
//   - NotifyOnFirstSeen: whether newly tracked mods are announced, or
//     silently recorded and only announced on their next update.
//   - PingRoles: Discord role IDs mentioned in notification messages.
//   - Items: the tracked workshop items.
type Config struct {
	DatabaseDSN       string
	DiscordWebhookURL string
	SteamAPIKey       string
	PollInterval      time.Duration
	LogLevel          string
	NotifyOnFirstSeen bool
	PingRoles         []uint64
	Items             []models.TrackedItem
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "mods.db"
	c.PollInterval = 0
	c.LogLevel = "info"
	c.NotifyOnFirstSeen = true
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present), environment variables, and command-line flags.
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	cfg.Normalize()
	return cfg
}

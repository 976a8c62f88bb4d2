package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/workshop-watcher/internal/flagx"
	"github.com/dmitrijs2005/workshop-watcher/internal/models"
	"github.com/dmitrijs2005/workshop-watcher/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Field names
// match the config.json layout of earlier versions of the watcher, so
// existing files keep working. Intervals accept either "5m" strings or
// integer seconds via timex.Duration.
type JsonConfig struct {
	Database          string         `json:"database"`
	DiscordWebhook    string         `json:"discord_webhook"`
	SteamAPIKey       string         `json:"steam_api_key"`
	PollInterval      timex.Duration `json:"poll_interval"`
	LogLevel          string         `json:"log_level"`
	NotifyOnFirstSeen *bool          `json:"notify_on_first_seen"`
	PingRoles         []uint64       `json:"ping_roles"`
	Mods              []JsonMod      `json:"mods"`
}

// JsonMod is one tracked item entry. The ID is declared as json.Number so
// both quoted and bare workshop IDs parse.
type JsonMod struct {
	ID    json.Number `json:"id"`
	Alias string      `json:"alias"`
}

// parseJson overlays Config with values loaded from a JSON file located via
// the -c/-config flags. Missing flag means no JSON stage. Panics on read or
// unmarshal errors (caller should treat a broken config file as fatal).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.Database != "" {
		cfg.DatabaseDSN = jc.Database
	}
	if jc.DiscordWebhook != "" {
		cfg.DiscordWebhookURL = jc.DiscordWebhook
	}
	if jc.SteamAPIKey != "" {
		cfg.SteamAPIKey = jc.SteamAPIKey
	}
	if jc.PollInterval.Duration != 0 {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	if jc.NotifyOnFirstSeen != nil {
		cfg.NotifyOnFirstSeen = *jc.NotifyOnFirstSeen
	}
	if jc.PingRoles != nil {
		cfg.PingRoles = jc.PingRoles
	}

	for _, m := range jc.Mods {
		id, err := parseWorkshopID(m.ID.String())
		if err != nil {
			// invalid entries are dropped here and counted by Normalize
			continue
		}
		cfg.Items = append(cfg.Items, models.TrackedItem{ID: id, Name: m.Alias})
	}
}

package config

import "os"

// parseEnv overlays Config with values from environment variables. These
// exist so credentials can stay out of the config file.
func parseEnv(cfg *Config) {
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.DiscordWebhookURL = v
	}
	if v := os.Getenv("STEAM_API_KEY"); v != "" {
		cfg.SteamAPIKey = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
}

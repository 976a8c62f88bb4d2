package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var steamAPIKeyRe = regexp.MustCompile(`^[A-Fa-f0-9]{32}$`)

// parseWorkshopID parses a workshop item ID, rejecting zero and garbage.
func parseWorkshopID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid workshop id %q: %w", s, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("invalid workshop id %q: must be positive", s)
	}
	return id, nil
}

// ValidDiscordWebhook checks that a webhook URL is HTTPS on a Discord
// domain and points at the webhook API path.
func ValidDiscordWebhook(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	validDomain := strings.Contains(u.Host, "discord.com") || strings.Contains(u.Host, "discordapp.com")
	return u.Scheme == "https" && validDomain && strings.Contains(u.Path, "/api/webhooks/")
}

// ValidSteamAPIKey checks the 32-hex-character shape of a Steam Web API key.
func ValidSteamAPIKey(key string) bool {
	return steamAPIKeyRe.MatchString(key)
}

// Normalize removes duplicate tracked items, keeping the first occurrence,
// and returns how many entries were dropped.
func (c *Config) Normalize() int {
	seen := make(map[uint64]struct{}, len(c.Items))
	kept := c.Items[:0]
	dropped := 0
	for _, item := range c.Items {
		if _, ok := seen[item.ID]; ok {
			dropped++
			continue
		}
		seen[item.ID] = struct{}{}
		kept = append(kept, item)
	}
	c.Items = kept
	return dropped
}

// Validate reports whether the configuration is usable for a polling run.
// A missing API key is allowed (identities stay unresolved); a missing or
// malformed webhook and an empty item list are not.
func (c *Config) Validate() error {
	if c.DiscordWebhookURL == "" {
		return errors.New("discord webhook not provided (config or DISCORD_WEBHOOK_URL)")
	}
	if !ValidDiscordWebhook(c.DiscordWebhookURL) {
		return errors.New("discord webhook URL is not a valid https discord webhook")
	}
	if len(c.Items) == 0 {
		return errors.New("no valid workshop items configured")
	}
	if c.SteamAPIKey != "" && !ValidSteamAPIKey(c.SteamAPIKey) {
		return errors.New("steam api key does not look like a 32-character hex key")
	}
	return nil
}

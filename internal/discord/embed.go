// Package discord renders workshop events as webhook embeds and delivers
// them, with backoff and rate limit handling.
package discord

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/workshop-watcher/internal/models"
	"github.com/dmitrijs2005/workshop-watcher/internal/steam"
)

const (
	// MaxEmbedsPerMessage is the webhook API limit.
	MaxEmbedsPerMessage = 10

	embedColor = 0x2ecc71

	// maxDescriptionLen keeps mod descriptions from dominating the embed.
	maxDescriptionLen = 350
)

type Embed struct {
	Title       string       `json:"title,omitempty"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Thumbnail   *EmbedMedia  `json:"thumbnail,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type EmbedMedia struct {
	URL string `json:"url"`
}

// BuildEmbed renders one event. Unresolved authors fall back to the raw
// Steam ID so a notification never blocks on identity resolution.
func BuildEmbed(ev *models.Event) Embed {
	m := ev.Mod

	e := Embed{
		Title:       embedTitle(m.Title, ev.Alias),
		URL:         fmt.Sprintf(steam.WorkshopItemURL, m.ID),
		Description: truncate(m.Description, maxDescriptionLen),
		Color:       embedColor,
		Footer: &EmbedFooter{
			Text: fmt.Sprintf("Workshop ID: %d • Creator ID: %s", m.ID, m.AuthorID),
		},
	}
	if m.PreviewURL != "" {
		e.Thumbnail = &EmbedMedia{URL: m.PreviewURL}
	}

	e.Fields = append(e.Fields,
		EmbedField{Name: "Updated", Value: relativeTime(m.TimeUpdated), Inline: true},
		EmbedField{Name: "Created", Value: relativeTime(m.TimeCreated), Inline: true},
		EmbedField{Name: "File size", Value: humanize.Bytes(uint64(max(m.FileSize, 0))), Inline: true},
		EmbedField{Name: "Changelog", Value: fmt.Sprintf("[View changes](%s)", fmt.Sprintf(steam.WorkshopChangelogURL, m.ID))},
		EmbedField{
			Name:  "Stats",
			Value: fmt.Sprintf("%s views • %s subscribers • %s favorites", humanize.Comma(m.Views), humanize.Comma(m.Subscriptions), humanize.Comma(m.Favorites)),
		},
		EmbedField{Name: "Creator", Value: creatorValue(ev.Author, m.AuthorID), Inline: true},
	)
	if ev.Kind == models.EventUpdated && ev.PrevUpdated > 0 {
		e.Fields = append(e.Fields, EmbedField{Name: "Prev. update", Value: relativeTime(ev.PrevUpdated), Inline: true})
	}

	return e
}

func embedTitle(title, alias string) string {
	if alias == "" {
		return title
	}
	return fmt.Sprintf("%s · (%s)", title, alias)
}

// relativeTime renders a unix timestamp with Discord's client side
// relative formatting.
func relativeTime(ts int64) string {
	if ts <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("<t:%d:R>", ts)
}

func creatorValue(author *models.SteamUser, authorID string) string {
	if author.Resolved() {
		return fmt.Sprintf("[%s](%s)", author.PersonaName, fmt.Sprintf(steam.ProfileURL, author.SteamID))
	}
	if authorID == "" {
		return "unknown"
	}
	return authorID
}

// truncate cuts s to at most n runes at a word boundary, appending an
// ellipsis when anything was dropped.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndexAny(cut, " \t\n"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \t\n") + "…"
}

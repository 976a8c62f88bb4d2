package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/workshop-watcher/internal/common"
	"github.com/dmitrijs2005/workshop-watcher/internal/models"
	"github.com/dmitrijs2005/workshop-watcher/internal/retry"
	"github.com/dmitrijs2005/workshop-watcher/internal/shared"
)

type playerSummariesResponse struct {
	Response struct {
		Players []struct {
			SteamID     string `json:"steamid"`
			PersonaName string `json:"personaname"`
			RealName    string `json:"realname"`
			ProfileURL  string `json:"profileurl"`
			AvatarFull  string `json:"avatarfull"`
		} `json:"players"`
	} `json:"response"`
}

// FetchPlayerSummaries resolves Steam profiles for the given IDs in batches
// of MaxSummariesPerBatch. IDs absent from the returned map either do not
// exist or belonged to a batch that failed after retries; callers decide
// how to degrade.
func (c *Client) FetchPlayerSummaries(ctx context.Context, apiKey string, steamIDs []string) map[string]*models.SteamUser {
	users := make(map[string]*models.SteamUser, len(steamIDs))

	for _, batch := range shared.Chunk(steamIDs, MaxSummariesPerBatch) {
		body, err := retry.Do(ctx, c.policy, func() ([]byte, error) {
			return c.getSummaries(ctx, apiKey, batch)
		}, func(err error, next time.Duration) {
			c.log.Warn(ctx, "player summaries batch failed, retrying", "error", err, "next_try_in", next)
		})
		if err != nil {
			c.log.Error(ctx, "player summaries batch failed after retries", "error", err, "batch_size", len(batch))
			continue
		}

		var payload playerSummariesResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			c.log.Error(ctx, "player summaries response undecodable", "error", err)
			continue
		}

		now := c.now().Unix()
		for _, p := range payload.Response.Players {
			users[p.SteamID] = &models.SteamUser{
				SteamID:     p.SteamID,
				PersonaName: p.PersonaName,
				RealName:    p.RealName,
				ProfileURL:  p.ProfileURL,
				AvatarURL:   p.AvatarFull,
				LastFetched: now,
			}
		}
	}

	return users
}

func (c *Client) getSummaries(ctx context.Context, apiKey string, batch []string) ([]byte, error) {
	q := url.Values{}
	q.Set("key", apiKey)
	q.Set("steamids", strings.Join(batch, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.summariesURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		// the request URL carries the API key, keep it out of error chains
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("%w: player summaries request: %w", common.ErrTransientUpstream, err)
	}
	defer resp.Body.Close()

	return c.readAPIResponse(resp)
}

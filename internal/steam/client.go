// Package steam queries the Steam Web API for published workshop file
// details and player summaries. Requests are batched to the API's limits;
// whole-batch failures are retried with backoff and then reported as
// transient, while per-item problems are classified without failing the
// batch.
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/workshop-watcher/internal/common"
	"github.com/dmitrijs2005/workshop-watcher/internal/logging"
	"github.com/dmitrijs2005/workshop-watcher/internal/models"
	"github.com/dmitrijs2005/workshop-watcher/internal/retry"
	"github.com/dmitrijs2005/workshop-watcher/internal/shared"
)

const (
	PublishedFileDetailsURL = "https://api.steampowered.com/ISteamRemoteStorage/GetPublishedFileDetails/v1/"
	PlayerSummariesURL      = "https://api.steampowered.com/ISteamUser/GetPlayerSummaries/v2/"

	WorkshopItemURL      = "https://steamcommunity.com/sharedfiles/filedetails/?id=%d"
	WorkshopChangelogURL = "https://steamcommunity.com/sharedfiles/filedetails/changelog/%d"
	ProfileURL           = "https://steamcommunity.com/profiles/%s"

	// MaxDetailsPerBatch is the GetPublishedFileDetails request ceiling.
	MaxDetailsPerBatch = 50
	// MaxSummariesPerBatch is the GetPlayerSummaries request ceiling.
	MaxSummariesPerBatch = 100

	userAgent = "workshop-watcher/1.0"

	// resultOK is the per-item status Steam reports for a retrievable file.
	resultOK = 1
)

// Outcome classifies the per-item result of a catalog query.
type Outcome int

const (
	// OutcomeOK means Result.Mod holds a populated snapshot.
	OutcomeOK Outcome = iota
	// OutcomeNotFound means the item is absent upstream (removed, private,
	// or an invalid ID). Skipped silently.
	OutcomeNotFound
	// OutcomeMalformed means the response fragment for the item could not
	// be decoded. Logged and skipped.
	OutcomeMalformed
	// OutcomeTransient means the whole batch failed after retries; the
	// item is untouched this cycle and retried on the next one.
	OutcomeTransient
)

// Result is the per-item outcome of a catalog query.
type Result struct {
	Outcome Outcome
	Mod     *models.Mod
}

// Client calls the Steam Web API.
type Client struct {
	http         *http.Client
	detailsURL   string
	summariesURL string
	policy       retry.Policy
	log          logging.Logger
	now          func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (mainly for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithEndpoints overrides the API endpoints (mainly for tests).
func WithEndpoints(detailsURL, summariesURL string) Option {
	return func(cl *Client) {
		cl.detailsURL = detailsURL
		cl.summariesURL = summariesURL
	}
}

// WithPolicy overrides the batch retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(cl *Client) { cl.policy = p }
}

// WithNow overrides the clock used for last-checked stamps.
func WithNow(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// NewClient builds a Client with the production endpoints and the catalog
// retry policy.
func NewClient(log logging.Logger, opts ...Option) *Client {
	c := &Client{
		http:         &http.Client{Timeout: 20 * time.Second},
		detailsURL:   PublishedFileDetailsURL,
		summariesURL: PlayerSummariesURL,
		policy:       retry.CatalogPolicy,
		log:          log,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiDetail struct {
	PublishedFileID string      `json:"publishedfileid"`
	Result          int         `json:"result"`
	Creator         string      `json:"creator"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	FileSize        json.Number `json:"file_size"`
	TimeCreated     int64       `json:"time_created"`
	TimeUpdated     int64       `json:"time_updated"`
	Views           int64       `json:"views"`
	Subscriptions   int64       `json:"subscriptions"`
	Favorited       int64       `json:"favorited"`
	Visibility      int64       `json:"visibility"`
	PreviewURL      string      `json:"preview_url"`
	Tags            []struct {
		Tag string `json:"tag"`
	} `json:"tags"`
}

type detailsResponse struct {
	Response struct {
		Details []json.RawMessage `json:"publishedfiledetails"`
	} `json:"response"`
}

// FetchPublishedFileDetails queries details for the given workshop IDs in
// batches of MaxDetailsPerBatch and returns an entry for every requested ID.
// Batch boundaries do not affect per-item results.
func (c *Client) FetchPublishedFileDetails(ctx context.Context, ids []uint64) map[uint64]Result {
	results := make(map[uint64]Result, len(ids))

	for _, batch := range shared.Chunk(ids, MaxDetailsPerBatch) {
		c.fetchDetailsBatch(ctx, batch, results)
	}

	return results
}

func (c *Client) fetchDetailsBatch(ctx context.Context, batch []uint64, results map[uint64]Result) {
	body, err := retry.Do(ctx, c.policy, func() ([]byte, error) {
		return c.postDetails(ctx, batch)
	}, func(err error, next time.Duration) {
		c.log.Warn(ctx, "catalog batch failed, retrying", "error", err, "next_try_in", next)
	})
	if err != nil {
		c.log.Error(ctx, "catalog batch failed after retries", "error", err, "batch_size", len(batch))
		for _, id := range batch {
			results[id] = Result{Outcome: OutcomeTransient}
		}
		return
	}

	var payload detailsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		c.log.Error(ctx, "catalog response undecodable", "error", err, "batch_size", len(batch))
		for _, id := range batch {
			results[id] = Result{Outcome: OutcomeTransient}
		}
		return
	}

	requested := make(map[uint64]struct{}, len(batch))
	for _, id := range batch {
		requested[id] = struct{}{}
	}

	for _, raw := range payload.Response.Details {
		id, res := c.classifyDetail(ctx, raw)
		if id == 0 {
			continue
		}
		// the result maps only the identifiers that were asked for
		if _, ok := requested[id]; !ok {
			c.log.Warn(ctx, "catalog fragment for unrequested id, dropped", "id", id)
			continue
		}
		results[id] = res
	}

	// IDs the response never mentioned do not exist upstream.
	for _, id := range batch {
		if _, ok := results[id]; !ok {
			results[id] = Result{Outcome: OutcomeNotFound}
		}
	}
}

// classifyDetail decodes a single response fragment. A fragment whose ID
// cannot even be read is unattributable and dropped (the ID it belonged to
// then falls out as not-found).
func (c *Client) classifyDetail(ctx context.Context, raw json.RawMessage) (uint64, Result) {
	var head struct {
		PublishedFileID string `json:"publishedfileid"`
		Result          int    `json:"result"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		c.log.Warn(ctx, "catalog fragment missing id, dropped", "error", err)
		return 0, Result{}
	}
	id, err := strconv.ParseUint(head.PublishedFileID, 10, 64)
	if err != nil {
		c.log.Warn(ctx, "catalog fragment has unparsable id, dropped", "id", head.PublishedFileID)
		return 0, Result{}
	}

	if head.Result != resultOK {
		return id, Result{Outcome: OutcomeNotFound}
	}

	var d apiDetail
	if err := json.Unmarshal(raw, &d); err != nil {
		c.log.Warn(ctx, "catalog fragment malformed", "id", id, "error", err)
		return id, Result{Outcome: OutcomeMalformed}
	}

	return id, Result{Outcome: OutcomeOK, Mod: c.normalizeDetail(id, &d)}
}

func (c *Client) normalizeDetail(id uint64, d *apiDetail) *models.Mod {
	tags := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		if t.Tag != "" {
			tags = append(tags, t.Tag)
		}
	}
	size, _ := d.FileSize.Int64()

	return &models.Mod{
		ID:            id,
		Title:         d.Title,
		AuthorID:      d.Creator,
		FileSize:      size,
		TimeCreated:   d.TimeCreated,
		TimeUpdated:   d.TimeUpdated,
		LastChecked:   c.now().Unix(),
		Description:   d.Description,
		Views:         d.Views,
		Subscriptions: d.Subscriptions,
		Favorites:     d.Favorited,
		Tags:          strings.Join(tags, ","),
		Visibility:    d.Visibility,
		PreviewURL:    d.PreviewURL,
	}
}

// postDetails performs one GetPublishedFileDetails request. Returns a
// retryable error on network problems and 5xx, a permanent one on other
// non-2xx statuses.
func (c *Client) postDetails(ctx context.Context, batch []uint64) ([]byte, error) {
	form := url.Values{}
	form.Set("itemcount", strconv.Itoa(len(batch)))
	for i, id := range batch {
		form.Set(fmt.Sprintf("publishedfileids[%d]", i), strconv.FormatUint(id, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.detailsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog request: %w", common.ErrTransientUpstream, err)
	}
	defer resp.Body.Close()

	return c.readAPIResponse(resp)
}

// readAPIResponse maps HTTP statuses onto the retry taxonomy shared by both
// Steam endpoints.
func (c *Client) readAPIResponse(resp *http.Response) ([]byte, error) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, c.policy.After(parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: steam api status %d", common.ErrTransientUpstream, resp.StatusCode)
	default:
		return nil, retry.Permanent(fmt.Errorf("steam api status %d", resp.StatusCode))
	}
}

func parseRetryAfter(header string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

type webhookPayload struct {
	Content         string           `json:"content,omitempty"`
	Embeds          []Embed          `json:"embeds"`
	AllowedMentions *allowedMentions `json:"allowed_mentions,omitempty"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

// Dispatcher posts event notifications to a Discord webhook. Each message
// carries at most MaxEmbedsPerMessage embeds; new and updated mods go in
// separate messages.
type Dispatcher struct {
	http      *http.Client
	url       string
	pingRoles []uint64
	policy    retry.Policy
	log       logging.Logger
}

type DispatcherOption func(*Dispatcher)

// WithHTTPClient overrides the HTTP client (mainly for tests).
func WithHTTPClient(c *http.Client) DispatcherOption {
	return func(d *Dispatcher) { d.http = c }
}

// WithPolicy overrides the delivery retry policy.
func WithPolicy(p retry.Policy) DispatcherOption {
	return func(d *Dispatcher) { d.policy = p }
}

func NewDispatcher(webhookURL string, pingRoles []uint64, log logging.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		http:      &http.Client{Timeout: 15 * time.Second},
		url:       webhookURL,
		pingRoles: pingRoles,
		policy:    retry.DeliveryPolicy,
		log:       log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver posts notifications for events and returns the subset that was
// acknowledged by Discord, in input order. A failed message only loses the
// events it carried; later messages are still attempted.
func (d *Dispatcher) Deliver(ctx context.Context, events []*models.Event) []*models.Event {
	var added, updated []*models.Event
	for _, ev := range events {
		if ev.Kind == models.EventNew {
			added = append(added, ev)
		} else {
			updated = append(updated, ev)
		}
	}

	delivered := make(map[*models.Event]bool, len(events))
	d.deliverGroup(ctx, added, "added", delivered)
	d.deliverGroup(ctx, updated, "updated", delivered)

	out := make([]*models.Event, 0, len(events))
	for _, ev := range events {
		if delivered[ev] {
			out = append(out, ev)
		}
	}
	return out
}

func (d *Dispatcher) deliverGroup(ctx context.Context, events []*models.Event, verb string, delivered map[*models.Event]bool) {
	for _, chunk := range shared.Chunk(events, MaxEmbedsPerMessage) {
		payload := d.buildPayload(chunk, verb)
		if err := d.post(ctx, payload); err != nil {
			d.log.Error(ctx, "webhook delivery failed", "verb", verb, "events", len(chunk), "error", err)
			continue
		}
		for _, ev := range chunk {
			delivered[ev] = true
		}
	}
}

func (d *Dispatcher) buildPayload(events []*models.Event, verb string) *webhookPayload {
	noun := "Workshop mod"
	if len(events) > 1 {
		noun = "Workshop mods"
	}

	var sb strings.Builder
	for _, role := range d.pingRoles {
		fmt.Fprintf(&sb, "<@&%d> ", role)
	}
	sb.WriteString(noun)
	sb.WriteString(" ")
	sb.WriteString(verb)

	p := &webhookPayload{
		Content: sb.String(),
		Embeds:  make([]Embed, 0, len(events)),
	}
	if len(d.pingRoles) > 0 {
		p.AllowedMentions = &allowedMentions{Parse: []string{"roles"}}
	}
	for _, ev := range events {
		p.Embeds = append(p.Embeds, BuildEmbed(ev))
	}
	return p
}

// post sends one webhook message, retrying per the delivery policy. Rate
// limits are retried after the interval Discord asks for, other client
// errors are permanent.
func (d *Dispatcher) post(ctx context.Context, payload *webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = retry.Do(ctx, d.policy, func() (struct{}, error) {
		return struct{}{}, d.postOnce(ctx, body)
	}, func(err error, next time.Duration) {
		d.log.Warn(ctx, "webhook post failed, retrying", "error", err, "next_try_in", next)
	})
	return err
}

func (d *Dispatcher) postOnce(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		// the webhook URL embeds its token, keep it out of error chains
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return d.policy.After(rateLimitDelay(resp))
	case resp.StatusCode >= 500:
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	default:
		return retry.Permanent(fmt.Errorf("%w: webhook status %d", common.ErrPermanentDelivery, resp.StatusCode))
	}
}

// rateLimitDelay reads the wait Discord asks for, preferring the JSON body's
// retry_after over the Retry-After header.
func rateLimitDelay(resp *http.Response) time.Duration {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var rl struct {
			RetryAfter float64 `json:"retry_after"`
		}
		if json.Unmarshal(raw, &rl) == nil && rl.RetryAfter > 0 {
			return time.Duration(rl.RetryAfter * float64(time.Second))
		}
	}
	if secs, err := strconv.ParseFloat(strings.TrimSpace(resp.Header.Get("Retry-After")), 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}

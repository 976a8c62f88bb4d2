package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/workshop-watcher/internal/logging"
	"github.com/dmitrijs2005/workshop-watcher/internal/models"
	"github.com/dmitrijs2005/workshop-watcher/internal/retry"
)

var fastDelivery = retry.Policy{
	MaxTries:        3,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	MaxRetryAfter:   20 * time.Millisecond,
}

func newTestDispatcher(t *testing.T, url string, roles []uint64) *Dispatcher {
	t.Helper()
	return NewDispatcher(url, roles, logging.NewDefault(slog.LevelError), WithPolicy(fastDelivery))
}

func makeEvents(kind models.EventKind, n int) []*models.Event {
	events := make([]*models.Event, n)
	for i := range events {
		events[i] = &models.Event{
			Kind:   kind,
			Mod:    &models.Mod{ID: uint64(i + 1), Title: fmt.Sprintf("Mod %d", i+1)},
			Author: &models.SteamUser{},
		}
	}
	return events
}

func decodePayload(t *testing.T, r *http.Request) webhookPayload {
	t.Helper()
	var p webhookPayload
	require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
	return p
}

func TestDeliver_GroupsByKindAndBatchSize(t *testing.T) {
	var payloads []webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payloads = append(payloads, decodePayload(t, r))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	events := append(makeEvents(models.EventNew, 12), makeEvents(models.EventUpdated, 1)...)
	d := newTestDispatcher(t, srv.URL, nil)

	delivered := d.Deliver(context.Background(), events)

	assert.Len(t, delivered, 13)
	require.Len(t, payloads, 3)
	assert.Equal(t, "Workshop mods added", payloads[0].Content)
	assert.Len(t, payloads[0].Embeds, 10)
	assert.Equal(t, "Workshop mods added", payloads[1].Content)
	assert.Len(t, payloads[1].Embeds, 2)
	assert.Equal(t, "Workshop mod updated", payloads[2].Content)
	assert.Len(t, payloads[2].Embeds, 1)
}

func TestDeliver_RolePingsAndMentions(t *testing.T) {
	var payload webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload = decodePayload(t, r)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, srv.URL, []uint64{111, 222})
	d.Deliver(context.Background(), makeEvents(models.EventNew, 1))

	assert.Equal(t, "<@&111> <@&222> Workshop mod added", payload.Content)
	require.NotNil(t, payload.AllowedMentions)
	assert.Equal(t, []string{"roles"}, payload.AllowedMentions.Parse)
}

func TestDeliver_FailedMessageLosesOnlyItsEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := decodePayload(t, r)
		if strings.Contains(p.Content, "updated") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	added := makeEvents(models.EventNew, 2)
	updated := makeEvents(models.EventUpdated, 2)
	events := []*models.Event{added[0], updated[0], added[1], updated[1]}

	d := newTestDispatcher(t, srv.URL, nil)
	delivered := d.Deliver(context.Background(), events)

	// input order is preserved for the survivors
	require.Len(t, delivered, 2)
	assert.Same(t, added[0], delivered[0])
	assert.Same(t, added[1], delivered[1])
}

func TestDeliver_RetriesAfterRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"retry_after": 0.001}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, srv.URL, nil)
	delivered := d.Deliver(context.Background(), makeEvents(models.EventNew, 1))

	assert.Equal(t, int32(2), hits.Load())
	assert.Len(t, delivered, 1)
}

func TestDeliver_ClientErrorDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, srv.URL, nil)
	delivered := d.Deliver(context.Background(), makeEvents(models.EventNew, 1))

	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, delivered)
}

func TestDeliver_ServerErrorExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, srv.URL, nil)
	delivered := d.Deliver(context.Background(), makeEvents(models.EventNew, 1))

	assert.Equal(t, int32(3), hits.Load())
	assert.Empty(t, delivered)
}

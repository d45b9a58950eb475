package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubtracker/ackscan/pkg/config"
	"github.com/pubtracker/ackscan/pkg/logging"
	"github.com/pubtracker/ackscan/pkg/webhook"
)

func newClient(t *testing.T, url string, mutate func(*config.WebhookConfig)) (*webhook.Client, *logging.TestLogger) {
	t.Helper()
	cfg := config.Default()
	cfg.Webhook.URL = url
	cfg.Webhook.RetryDelay = "1ms"
	if mutate != nil {
		mutate(&cfg.Webhook)
	}
	require.NoError(t, cfg.Validate())
	tl := logging.NewTestLogger()
	c, err := webhook.New(cfg, tl.Logger)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c, tl
}

func TestNew_DisabledWithoutURL(t *testing.T) {
	c, err := webhook.New(config.Default(), nil)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, c.Send(context.Background(), webhook.Event{Event: webhook.EventRunCommitted}))
}

func TestSend_PostsEvent(t *testing.T) {
	var got webhook.Event
	var header http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, _ := newClient(t, server.URL, nil)
	err := c.Send(context.Background(), webhook.Event{
		Event:      webhook.EventRunCommitted,
		RunID:      "run-1",
		CorpusRoot: "/srv/corpus",
		Summary:    map[string]int{"total": 3},
	})
	require.NoError(t, err)

	assert.Equal(t, webhook.EventRunCommitted, got.Event)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "/srv/corpus", got.CorpusRoot)
	assert.NotEmpty(t, got.Timestamp)
	assert.Equal(t, map[string]any{"total": float64(3)}, got.Summary)
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "run.committed", header.Get(webhook.HeaderEvent))
	assert.Empty(t, header.Get(webhook.HeaderSignature))
}

func TestSend_SignsPayload(t *testing.T) {
	var body []byte
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get(webhook.HeaderSignature)
	}))
	defer server.Close()

	c, _ := newClient(t, server.URL, func(w *config.WebhookConfig) { w.Secret = "s3cret" })
	require.NoError(t, c.Send(context.Background(), webhook.Event{Event: webhook.EventRunAborted, Error: "boom"}))

	assert.Equal(t, webhook.Sign(body, "s3cret"), signature)
	assert.Contains(t, signature, "sha256=")
}

func TestSend_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, tl := newClient(t, server.URL, nil)
	require.NoError(t, c.Send(context.Background(), webhook.Event{Event: webhook.EventRunCommitted}))
	assert.Equal(t, int32(3), calls.Load())
	tl.AssertLogged(t, logging.LevelWarn, "retrying")
}

func TestSend_GivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c, _ := newClient(t, server.URL, func(w *config.WebhookConfig) { w.MaxRetries = 1 })
	err := c.Send(context.Background(), webhook.Event{Event: webhook.EventRunCommitted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "unexpected status 500")
	assert.Equal(t, int32(2), calls.Load())
}

func TestSend_FiltersEvents(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c, _ := newClient(t, server.URL, func(w *config.WebhookConfig) {
		w.Events = []string{string(webhook.EventRunAborted)}
	})
	require.NoError(t, c.Send(context.Background(), webhook.Event{Event: webhook.EventRunCommitted}))
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, c.Send(context.Background(), webhook.Event{Event: webhook.EventRunAborted}))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSend_CancelledDuringRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, _ := newClient(t, server.URL, func(w *config.WebhookConfig) { w.RetryDelay = "1h" })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Send(ctx, webhook.Event{Event: webhook.EventRunCommitted})
	assert.ErrorIs(t, err, context.Canceled)
}

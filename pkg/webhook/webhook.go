// Package webhook notifies an HTTP endpoint when a run commits or aborts.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pubtracker/ackscan/pkg/config"
	"github.com/pubtracker/ackscan/pkg/logging"
)

// EventType names a run outcome.
type EventType string

const (
	EventRunCommitted EventType = "run.committed"
	EventRunAborted   EventType = "run.aborted"
)

// Header names.
const (
	HeaderEvent     = "X-Ackscan-Event"
	HeaderSignature = "X-Ackscan-Signature"
)

// Event is the JSON payload posted to the endpoint.
type Event struct {
	Event      EventType `json:"event"`
	Timestamp  string    `json:"timestamp"`
	RunID      string    `json:"run_id"`
	CorpusRoot string    `json:"corpus_root"`
	Error      string    `json:"error,omitempty"`
	Summary    any       `json:"summary,omitempty"`
}

// Client posts events to one endpoint.
type Client struct {
	url        string
	secret     string
	events     []string
	maxRetries int
	retryDelay time.Duration
	http       *http.Client
	logger     *logging.Logger
}

// New returns a client for cfg, or nil when no URL is configured. A nil
// client accepts Send and does nothing.
func New(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if cfg.Webhook.URL == "" {
		return nil, nil
	}
	timeout, err := cfg.WebhookTimeout()
	if err != nil {
		return nil, err
	}
	delay, err := cfg.WebhookRetryDelay()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		url:        cfg.Webhook.URL,
		secret:     cfg.Webhook.Secret,
		events:     cfg.Webhook.Events,
		maxRetries: cfg.Webhook.MaxRetries,
		retryDelay: delay,
		http:       &http.Client{Timeout: timeout},
		logger:     logger.Named("webhook"),
	}, nil
}

// Send posts event if the client subscribes to its type, retrying failed
// deliveries up to the configured count.
func (c *Client) Send(ctx context.Context, event Event) error {
	if c == nil || !c.matchesEvent(event.Event) {
		return nil
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("webhook delivery failed; retrying",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
		if lastErr = c.post(ctx, event.Event, payload); lastErr == nil {
			c.logger.Debug("webhook delivered", zap.String("event", string(event.Event)))
			return nil
		}
	}
	return fmt.Errorf("webhook %s after %d attempts: %w", event.Event, c.maxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, eventType EventType, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ackscan-webhook/1.0")
	req.Header.Set(HeaderEvent, string(eventType))
	if c.secret != "" {
		req.Header.Set(HeaderSignature, Sign(payload, c.secret))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) matchesEvent(event EventType) bool {
	for _, e := range c.events {
		if e == string(event) || e == "*" {
			return true
		}
	}
	return false
}

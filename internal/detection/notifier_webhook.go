// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/authsentry/internal/logging"
)

// WebhookNotifier posts alerts to an HTTP endpoint. Deliveries are rate
// limited and guarded by a circuit breaker so a dead endpoint is not
// hammered.
type WebhookNotifier struct {
	webhookURL string
	headers    map[string]string
	client     *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[struct{}]
	enabled    bool
	mu         sync.RWMutex
}

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	WebhookURL string            `json:"webhook_url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Enabled    bool              `json:"enabled"`
	Timeout    time.Duration     `json:"timeout"`

	// RateLimit is deliveries per second; Burst allows short spikes.
	RateLimit float64 `json:"rate_limit"`
	Burst     int     `json:"burst"`

	// BreakerMaxFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerMaxFailures uint32        `json:"breaker_max_failures"`
	BreakerTimeout     time.Duration `json:"breaker_timeout"`
}

// WebhookPayload is the JSON body posted to the endpoint.
type WebhookPayload struct {
	Alert     *AnomalyAlert `json:"alert"`
	EventType string        `json:"event_type"` // anomaly_alert
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"` // authsentry
}

// NewWebhookNotifier creates a webhook notifier. Zero values fall back to
// 5 deliveries per second, a burst of 10, 5 failures and a 1 minute open
// circuit.
func NewWebhookNotifier(config WebhookConfig) *WebhookNotifier {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 5
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.BreakerMaxFailures == 0 {
		config.BreakerMaxFailures = 5
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = time.Minute
	}

	headers := make(map[string]string, len(config.Headers))
	for k, v := range config.Headers {
		headers[k] = v
	}

	settings := gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 1,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("webhook circuit breaker state changed")
		},
	}

	return &WebhookNotifier{
		webhookURL: config.WebhookURL,
		headers:    headers,
		enabled:    config.Enabled,
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		breaker:    gobreaker.NewCircuitBreaker[struct{}](settings),
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the notifier name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Enabled returns whether this notifier is enabled and has a URL.
func (n *WebhookNotifier) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled && n.webhookURL != ""
}

// SetEnabled enables or disables the notifier.
func (n *WebhookNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// BreakerState returns the circuit breaker state, e.g. "closed" or "open".
func (n *WebhookNotifier) BreakerState() string {
	return n.breaker.State().String()
}

// Send posts an alert to the endpoint.
func (n *WebhookNotifier) Send(ctx context.Context, alert *AnomalyAlert) error {
	n.mu.RLock()
	if !n.enabled || n.webhookURL == "" {
		n.mu.RUnlock()
		return nil
	}
	webhookURL := n.webhookURL
	headers := make(map[string]string, len(n.headers))
	for k, v := range n.headers {
		headers[k] = v
	}
	n.mu.RUnlock()

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit wait: %w", err)
	}

	body, err := json.Marshal(WebhookPayload{
		Alert:     alert,
		EventType: "anomaly_alert",
		Timestamp: time.Now().UTC(),
		Source:    "authsentry",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	_, err = n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, webhookURL, headers, body)
	})
	return err
}

func (n *WebhookNotifier) post(ctx context.Context, url string, headers map[string]string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "authsentry-webhook")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

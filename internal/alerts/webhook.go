package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/log"
)

// WebhookSink POSTs each alert as JSON.
type WebhookSink struct {
	url        string
	token      string
	httpClient *http.Client
}

type WebhookOption func(*WebhookSink)

// WithToken sends token as a bearer credential with every alert.
func WithToken(token string) WebhookOption {
	return func(s *WebhookSink) { s.token = token }
}

func WithHTTPClient(c *http.Client) WebhookOption {
	return func(s *WebhookSink) { s.httpClient = c }
}

func NewWebhookSink(url string, opts ...WebhookOption) *WebhookSink {
	s := &WebhookSink{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WebhookSink) Send(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	log.Debug("Sending alert", slog.String("endpoint", s.url), slog.String("key", alert.Key))
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn("failed to close response body", slog.Any("error", closeErr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("received non-OK response: %s", resp.Status)
	}
	return nil
}
